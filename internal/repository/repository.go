package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrNotFound is returned when no row exists at the requested address
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a create collides with an existing row
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConflict is returned when a compare-and-commit update lost a race
	ErrConflict = errors.New("record was modified concurrently")
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Rebind(query string) string
	DriverName() string
}

// forUpdate returns the row lock clause where the dialect has one. SQLite
// already serializes writers at BEGIN IMMEDIATE.
func forUpdate(db DBExecutor) string {
	if db.DriverName() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func parseKey(field, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, nil
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return key, nil
}

func keyString(k solana.PublicKey) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}

// insertResult turns an ON CONFLICT DO NOTHING outcome into ErrAlreadyExists
func insertResult(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// updateResult turns a version-guarded UPDATE outcome into ErrConflict
func updateResult(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func getOne(ctx context.Context, db DBExecutor, dest any, query string, args ...any) error {
	err := db.GetContext(ctx, dest, db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
