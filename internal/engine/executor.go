// Package engine runs synthesized statements against the warehouse database.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"aggnav/internal/domain"
)

// Compile-time check.
var _ domain.Executor = (*SQLExecutor)(nil)

// SQLExecutor wraps a *sql.DB to implement domain.Executor.
type SQLExecutor struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLExecutor creates a new SQLExecutor.
func NewSQLExecutor(db *sql.DB, logger *slog.Logger) *SQLExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLExecutor{db: db, logger: logger}
}

// Query runs a statement and returns every row as ordered column values.
func (e *SQLExecutor) Query(ctx context.Context, query string) ([][]any, error) {
	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	e.logger.Debug("executed sql", "rows", len(result), "duration", time.Since(start), "sql", query)
	return result, nil
}

func scanRows(rows *sql.Rows) ([][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// Drivers may reuse byte slices between rows.
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result = append(result, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
