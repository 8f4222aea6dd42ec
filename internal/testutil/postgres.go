//go:build integration

package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// PGURL returns the connection URL of the test PostgreSQL database from
// POCLAB_TEST_PG_URL.
func PGURL() string {
	return os.Getenv("POCLAB_TEST_PG_URL")
}

// SkipIfNoPG skips the test if the test database is not configured or not
// reachable.
func SkipIfNoPG(t *testing.T) {
	t.Helper()

	url := PGURL()
	if url == "" {
		t.Skip("test PostgreSQL not available: set POCLAB_TEST_PG_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		t.Skipf("test PostgreSQL not reachable: %v", err)
	}
	conn.Close(ctx)
}

// ResetPG drops the inventory tables so the next store open migrates a
// clean schema.
func ResetPG(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, PGURL())
	if err != nil {
		t.Fatalf("connecting to test PostgreSQL: %v", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, `DROP TABLE IF EXISTS links, hosts, labs`); err != nil {
		t.Fatalf("dropping tables: %v", err)
	}
}
