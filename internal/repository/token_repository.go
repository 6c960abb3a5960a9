package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/kkkkikiki/crowdfund/internal/model"
)

type mintRow struct {
	Address   string       `db:"address"`
	Authority string       `db:"authority"`
	Decimals  uint8        `db:"decimals"`
	Supply    model.Amount `db:"supply"`
	CreatedAt int64        `db:"created_at"`
}

type tokenAccountRow struct {
	Address   string       `db:"address"`
	Owner     string       `db:"owner"`
	Mint      string       `db:"mint"`
	Amount    model.Amount `db:"amount"`
	Custodial bool         `db:"custodial"`
	Version   int64        `db:"version"`
	CreatedAt int64        `db:"created_at"`
	UpdatedAt int64        `db:"updated_at"`
}

func (r tokenAccountRow) toModel() (*model.TokenAccount, error) {
	a := &model.TokenAccount{
		Amount:    r.Amount,
		Custodial: r.Custodial,
		Version:   r.Version,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
	var err error
	if a.Address, err = parseKey("token account", r.Address); err != nil {
		return nil, err
	}
	if a.Owner, err = parseKey("owner", r.Owner); err != nil {
		return nil, err
	}
	if a.Mint, err = parseKey("mint", r.Mint); err != nil {
		return nil, err
	}
	return a, nil
}

// TokenRepository stores mints and token account balances
type TokenRepository struct{}

// NewTokenRepository creates a new token repository
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{}
}

// CreateMint inserts a new mint
func (r *TokenRepository) CreateMint(ctx context.Context, db DBExecutor, mint *model.Mint) error {
	query := `
		INSERT INTO mints (address, authority, decimals, supply, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`

	mint.CreatedAt = time.Now().UTC()
	result, err := db.ExecContext(ctx, db.Rebind(query),
		mint.Address.String(), mint.Authority.String(), mint.Decimals, mint.Supply, toMillis(mint.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create mint: %w", err)
	}
	return insertResult(result)
}

// GetMint retrieves a mint by address
func (r *TokenRepository) GetMint(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.Mint, error) {
	return r.getMint(ctx, db, address, "")
}

// LockMint retrieves a mint for a supply change
func (r *TokenRepository) LockMint(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.Mint, error) {
	return r.getMint(ctx, db, address, forUpdate(db))
}

func (r *TokenRepository) getMint(ctx context.Context, db DBExecutor, address solana.PublicKey, lock string) (*model.Mint, error) {
	query := `
		SELECT address, authority, decimals, supply, created_at
		FROM mints
		WHERE address = ?` + lock

	var row mintRow
	if err := getOne(ctx, db, &row, query, address.String()); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get mint: %w", err)
	}

	m := &model.Mint{Decimals: row.Decimals, Supply: row.Supply, CreatedAt: fromMillis(row.CreatedAt)}
	var err error
	if m.Address, err = parseKey("mint", row.Address); err != nil {
		return nil, err
	}
	if m.Authority, err = parseKey("mint authority", row.Authority); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMintSupply sets a new supply on a locked mint
func (r *TokenRepository) UpdateMintSupply(ctx context.Context, db DBExecutor, mint *model.Mint) error {
	query := `UPDATE mints SET supply = ? WHERE address = ?`
	result, err := db.ExecContext(ctx, db.Rebind(query), mint.Supply, mint.Address.String())
	if err != nil {
		return fmt.Errorf("failed to update mint supply: %w", err)
	}
	return updateResult(result)
}

// CreateAccount inserts a zero-balance token account
func (r *TokenRepository) CreateAccount(ctx context.Context, db DBExecutor, account *model.TokenAccount) error {
	query := `
		INSERT INTO token_accounts (address, owner, mint, amount, custodial, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Version = 1

	result, err := db.ExecContext(ctx, db.Rebind(query),
		account.Address.String(), account.Owner.String(), account.Mint.String(), account.Amount,
		account.Custodial, account.Version, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to create token account: %w", err)
	}
	return insertResult(result)
}

// GetAccount retrieves a token account by address
func (r *TokenRepository) GetAccount(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.TokenAccount, error) {
	return r.getAccount(ctx, db, address, "")
}

// LockAccount retrieves a token account for a balance change
func (r *TokenRepository) LockAccount(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.TokenAccount, error) {
	return r.getAccount(ctx, db, address, forUpdate(db))
}

func (r *TokenRepository) getAccount(ctx context.Context, db DBExecutor, address solana.PublicKey, lock string) (*model.TokenAccount, error) {
	query := `
		SELECT address, owner, mint, amount, custodial, version, created_at, updated_at
		FROM token_accounts
		WHERE address = ?` + lock

	var row tokenAccountRow
	if err := getOne(ctx, db, &row, query, address.String()); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get token account: %w", err)
	}
	return row.toModel()
}

// UpdateBalance commits a new balance with compare-and-commit on version
func (r *TokenRepository) UpdateBalance(ctx context.Context, db DBExecutor, account *model.TokenAccount) error {
	query := `
		UPDATE token_accounts
		SET amount = ?, version = ?, updated_at = ?
		WHERE address = ? AND version = ?
	`

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, db.Rebind(query),
		account.Amount, account.Version+1, toMillis(now), account.Address.String(), account.Version)
	if err != nil {
		return fmt.Errorf("failed to update token account: %w", err)
	}
	if err := updateResult(result); err != nil {
		return err
	}
	account.Version++
	account.UpdatedAt = now
	return nil
}
