package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite creates the sample star in t.TempDir() and returns a read pool
// over it. Both pools are closed on cleanup.
func OpenTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "foodmart.sqlite")

	writeDB, err := OpenSQLite(ctx, path, ModeWrite, 0)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = writeDB.Close() })

	if err := RunMigrations(ctx, writeDB); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	readDB, err := OpenSQLite(ctx, path, ModeRead, 4)
	if err != nil {
		t.Fatalf("open test sqlite read pool: %v", err)
	}
	t.Cleanup(func() { _ = readDB.Close() })

	return readDB
}
