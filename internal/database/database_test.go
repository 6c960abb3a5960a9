package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kkkkikiki/crowdfund/internal/config"
)

func TestOpenSQLiteRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLite(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestNewDBSQLiteAppliesMigrationsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg, err := config.LoadFrom(ctx, map[string]string{
		"DB_DRIVER": "sqlite",
		"DB_PATH":   filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	db, err := NewDB(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if got := Dialect(db.SQL); got != "sqlite" {
		t.Fatalf("dialect = %q, want sqlite", got)
	}

	// A second pass must be a no-op.
	if err := Migrate(ctx, db.SQL); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}

	var applied int
	if err := db.SQL.GetContext(ctx, &applied, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied migrations = %d, want 1", applied)
	}

	for _, table := range []string{"global_configs", "mints", "token_accounts", "campaigns", "donors", "ledger_events"} {
		var n int
		if err := db.SQL.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}
}

func TestExtractUp(t *testing.T) {
	t.Parallel()

	content := "-- +migrate Up\nCREATE TABLE a (x INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	if got := extractUp(content); got != "\nCREATE TABLE a (x INTEGER);\n" {
		t.Fatalf("extractUp = %q", got)
	}
	if got := extractUp("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("extractUp without markers = %q", got)
	}
}
