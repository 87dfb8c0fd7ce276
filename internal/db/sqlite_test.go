package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN_Write(t *testing.T) {
	dsn := buildDSN("/tmp/foodmart.sqlite", ModeWrite)

	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/foodmart.sqlite?"))
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.NotContains(t, dsn, "mode=ro")
}

func TestBuildDSN_Read(t *testing.T) {
	dsn := buildDSN("/tmp/foodmart.sqlite", ModeRead)

	assert.Contains(t, dsn, "mode=ro")
	assert.NotContains(t, dsn, "_txlock")
	assert.NotContains(t, dsn, "_journal_mode")
}

func TestOpenSQLite_InvalidMode(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), "bogus", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", ModeRead, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenTestSQLite_SeedsSampleStar(t *testing.T) {
	readDB := OpenTestSQLite(t)

	var facts int
	require.NoError(t, readDB.QueryRow("SELECT count(*) FROM sales_fact_1997").Scan(&facts))
	assert.Equal(t, 5, facts)

	var customers int
	require.NoError(t, readDB.QueryRow("SELECT count(DISTINCT customer_id) FROM agg_l_05_sales_fact_1997").Scan(&customers))
	assert.Equal(t, 3, customers)

	assert.Equal(t, 4, readDB.Stats().MaxOpenConnections)

	_, err := readDB.Exec("DELETE FROM customer")
	require.Error(t, err, "read pool must be read-only")
}

func TestMigrationVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "foodmart.sqlite")
	writeDB, err := OpenSQLite(ctx, path, ModeWrite, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = writeDB.Close() })

	require.NoError(t, RunMigrations(ctx, writeDB))
	v, err := MigrationVersion(ctx, writeDB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	assert.Equal(t, 1, writeDB.Stats().MaxOpenConnections)
}
