// Package testutil holds helpers shared by package tests: a temp-dir SQLite
// store, an opt-in PostgreSQL store, raw fixture inserts and a deterministic
// clock.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/pos/internal/store"
)

// PostgresDSNEnv names the variable holding a PostgreSQL DSN for tests that
// exercise the Postgres engine. Those tests skip when it is unset.
const PostgresDSNEnv = "POS_TEST_PG_DSN"

// NewStore opens a fresh SQLite store in t's temp dir and closes it on cleanup.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pos.db")
	s, err := store.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NewPostgresStore opens a store on the database named by POS_TEST_PG_DSN,
// inside a fresh schema that is dropped on cleanup. It skips t when the
// variable is unset.
func NewPostgresStore(t testing.TB) *store.Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv))
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	ctx := context.Background()

	admin, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { admin.Close() })

	schema := "pos_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		if _, err := admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Errorf("drop schema %s: %v", schema, err)
		}
	})

	s, err := store.Open(ctx, store.Config{Driver: store.Postgres, DSN: withSearchPath(dsn, schema)})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// withSearchPath adds a search_path runtime parameter to a URL or
// keyword/value DSN.
func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&search_path=" + schema
		}
		return dsn + "?search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

// InsertMenuItem inserts an active menu item and returns its id.
func InsertMenuItem(t testing.TB, s *store.Store, name string, priceCents int64) int64 {
	t.Helper()
	var id int64
	err := s.QueryRowContext(context.Background(),
		"INSERT INTO menu_item (name, category, price_cents, sku, active) VALUES (?, ?, ?, ?, 1) RETURNING id",
		name, "Food", priceCents, "",
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert menu item %q: %v", name, err)
	}
	return id
}

// Count returns SELECT COUNT(*) FROM table.
func Count(t testing.TB, s *store.Store, table string) int {
	t.Helper()
	var n int
	if err := s.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// Day returns a pointer to the UTC midnight of Epoch plus n days.
func Day(n int) *time.Time {
	d := time.Date(Epoch.Year(), Epoch.Month(), Epoch.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return &d
}
