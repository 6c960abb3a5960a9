package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:",prefix=SERVER_"`

	// Database configuration
	Database DatabaseConfig `env:",prefix=DB_"`

	// Application configuration
	App AppConfig `env:",prefix=APP_"`

	// Ledger addressing configuration
	Ledger LedgerConfig `env:",prefix=LEDGER_"`

	// Request signing configuration
	Auth AuthConfig `env:",prefix=AUTH_"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string  `env:"PORT,default=8080"`
	Host           string  `env:"HOST,default=0.0.0.0"`
	ReadTimeout    int     `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout   int     `env:"WRITE_TIMEOUT,default=30"` // seconds
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=200"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=50"`
}

// DatabaseConfig holds storage configuration. Driver selects between
// PostgreSQL and an embedded SQLite file.
type DatabaseConfig struct {
	Driver   string `env:"DRIVER,default=postgres"`
	Path     string `env:"PATH,default=crowdfund.db"` // sqlite only
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=crowdfund"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	Debug       bool   `env:"DEBUG,default=false"`
}

// LedgerConfig holds the namespace used for derived record and escrow addresses.
type LedgerConfig struct {
	ProgramID string `env:"PROGRAM_ID,default=3pgACwNx4AjBnqJzoeaXH26rLG9hVKqePTuaz64KXaQR"`
}

// AuthConfig holds request signature verification settings.
type AuthConfig struct {
	MaxClockSkew int `env:"MAX_CLOCK_SKEW,default=300"` // seconds
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load loads configuration from an optional .env file and the environment
func Load(ctx context.Context) (*Config, error) {
	// Missing dotenv files are fine; the environment alone is enough.
	_ = godotenv.Load(".env", ".env.local")

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom loads configuration from the given key/value pairs only.
func LoadFrom(ctx context.Context, values map[string]string) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.MapLookuper(values),
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that struct tags cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if _, err := c.Ledger.GetProgramID(); err != nil {
		return err
	}
	if c.Auth.MaxClockSkew <= 0 {
		return fmt.Errorf("auth max clock skew must be positive")
	}
	return nil
}

// GetDatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// IsSQLite reports whether the embedded backend is selected.
func (c *DatabaseConfig) IsSQLite() bool {
	return strings.EqualFold(c.Driver, DriverSQLite)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// GetProgramID parses the configured program namespace.
func (c *LedgerConfig) GetProgramID() (solana.PublicKey, error) {
	id, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid ledger program id %q: %w", c.ProgramID, err)
	}
	return id, nil
}

// GetMaxClockSkew returns the accepted signature timestamp drift.
func (c *AuthConfig) GetMaxClockSkew() time.Duration {
	return time.Duration(c.MaxClockSkew) * time.Second
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
