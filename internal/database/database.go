package database

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/kkkkikiki/crowdfund/internal/config"
)

// DB holds the ledger database handle
type DB struct {
	SQL *sqlx.DB
}

// NewDB opens the configured backend and applies migrations
func NewDB(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	if cfg.Database.IsSQLite() {
		db, err = OpenSQLite(ctx, cfg.Database.Path)
	} else {
		db, err = OpenPostgres(ctx, &cfg.Database)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info().Str("driver", db.DriverName()).Msg("database ready")

	return &DB{SQL: db}, nil
}

// OpenPostgres connects to PostgreSQL and sizes the pool
func OpenPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	postgres, err := sqlx.Connect("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Configure connection pool
	postgres.SetMaxOpenConns(cfg.MaxConns)
	postgres.SetMaxIdleConns(cfg.MinConns)
	postgres.SetConnMaxLifetime(time.Hour)

	if err := postgres.PingContext(ctx); err != nil {
		_ = postgres.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return postgres, nil
}

// OpenSQLite opens an embedded database file. Write transactions take the
// database lock at BEGIN so read-modify-write cycles never interleave.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	dsn := "file:" + filepath.Clean(path) + "?" + params.Encode()

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}
	return db, nil
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

// Close closes the database handle
func (db *DB) Close() error {
	if err := db.SQL.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
