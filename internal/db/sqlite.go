// Package db opens the warehouse databases the engine queries and seeds the sample star.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
)

// Supported drivers.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000"
	defaultJournalMode = "WAL"
)

// Mode selects how a warehouse database is opened.
type Mode string

const (
	// ModeRead is a pooled connection set for aggregate queries.
	ModeRead Mode = "read"
	// ModeWrite is a single connection used for migrations.
	ModeWrite Mode = "write"
)

// Open opens a warehouse database with the given driver.
func Open(ctx context.Context, driver, path string, mode Mode, maxOpen int) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, "sqlite":
		return OpenSQLite(ctx, path, mode, maxOpen)
	case DriverDuckDB:
		return OpenDuckDB(ctx, path, mode)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite opens a SQLite warehouse file.
//
// ModeWrite uses one connection with _txlock=immediate. ModeRead uses maxOpen
// connections (4 when maxOpen <= 0) and opens the file read-only.
func OpenSQLite(ctx context.Context, path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open(DriverSQLite, buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// OpenDuckDB opens a DuckDB warehouse file. An empty path opens an in-memory database.
func OpenDuckDB(ctx context.Context, path string, mode Mode) (*sql.DB, error) {
	dsn := path
	if mode == ModeRead && path != "" {
		dsn += "?access_mode=read_only"
	}
	db, err := sql.Open(DriverDuckDB, dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// buildDSN constructs a SQLite DSN for the mode.
func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_busy_timeout", defaultBusyTimeout)

	switch mode {
	case ModeWrite:
		params.Set("_journal_mode", defaultJournalMode)
		params.Set("_txlock", "immediate")
	case ModeRead:
		params.Set("mode", "ro")
	}

	return "file:" + path + "?" + params.Encode()
}
