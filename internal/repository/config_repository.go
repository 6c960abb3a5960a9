package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/kkkkikiki/crowdfund/internal/model"
)

type globalConfigRow struct {
	Address   string `db:"address"`
	Admin     string `db:"admin"`
	Bump      uint8  `db:"bump"`
	Version   int64  `db:"version"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// GlobalConfigRepository stores the deployment singleton
type GlobalConfigRepository struct{}

// NewGlobalConfigRepository creates a new global config repository
func NewGlobalConfigRepository() *GlobalConfigRepository {
	return &GlobalConfigRepository{}
}

// CreateGlobalConfig inserts the singleton; a second call yields ErrAlreadyExists
func (r *GlobalConfigRepository) CreateGlobalConfig(ctx context.Context, db DBExecutor, cfg *model.GlobalConfig) error {
	query := `
		INSERT INTO global_configs (address, admin, bump, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`

	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	cfg.Version = 1

	result, err := db.ExecContext(ctx, db.Rebind(query),
		cfg.Address.String(), cfg.Admin.String(), cfg.Bump, cfg.Version, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to create global config: %w", err)
	}
	return insertResult(result)
}

// GetGlobalConfig reads the singleton
func (r *GlobalConfigRepository) GetGlobalConfig(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.GlobalConfig, error) {
	return r.get(ctx, db, address, "")
}

// LockGlobalConfig reads the singleton for update
func (r *GlobalConfigRepository) LockGlobalConfig(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.GlobalConfig, error) {
	return r.get(ctx, db, address, forUpdate(db))
}

func (r *GlobalConfigRepository) get(ctx context.Context, db DBExecutor, address solana.PublicKey, lock string) (*model.GlobalConfig, error) {
	query := `
		SELECT address, admin, bump, version, created_at, updated_at
		FROM global_configs
		WHERE address = ?` + lock

	var row globalConfigRow
	if err := getOne(ctx, db, &row, query, address.String()); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get global config: %w", err)
	}

	cfg := &model.GlobalConfig{
		Bump:      row.Bump,
		Version:   row.Version,
		CreatedAt: fromMillis(row.CreatedAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
	}
	var err error
	if cfg.Address, err = parseKey("config address", row.Address); err != nil {
		return nil, err
	}
	if cfg.Admin, err = parseKey("admin", row.Admin); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateAdmin overwrites the admin with compare-and-commit on version
func (r *GlobalConfigRepository) UpdateAdmin(ctx context.Context, db DBExecutor, cfg *model.GlobalConfig) error {
	query := `
		UPDATE global_configs
		SET admin = ?, version = ?, updated_at = ?
		WHERE address = ? AND version = ?
	`

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, db.Rebind(query),
		cfg.Admin.String(), cfg.Version+1, toMillis(now), cfg.Address.String(), cfg.Version)
	if err != nil {
		return fmt.Errorf("failed to update global config: %w", err)
	}
	if err := updateResult(result); err != nil {
		return err
	}
	cfg.Version++
	cfg.UpdatedAt = now
	return nil
}
