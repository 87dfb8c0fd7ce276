// Package app wires the warehouse, schema source, session server and metrics
// into one application value shared by the HTTP server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"aggnav/internal/config"
	"aggnav/internal/db"
	"aggnav/internal/domain"
	"aggnav/internal/engine"
	"aggnav/internal/metrics"
	"aggnav/internal/schema"
	"aggnav/internal/session"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg    *config.Config
	DB     *sql.DB
	Logger *slog.Logger
	// Registerer receives the engine metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// App holds the fully-wired engine.
type App struct {
	Server   *session.Server
	Reloader *session.Reloader
	Metrics  *metrics.Engine
	Logger   *slog.Logger
}

// SchemaSource returns the schema loader for cfg: the configured file, or the
// embedded sample schema when no file is set.
func SchemaSource(cfg *config.Config) session.SchemaSource {
	if cfg.SchemaPath == "" {
		return func() (*domain.Schema, error) { return schema.Parse(db.SampleSchema) }
	}
	path := cfg.SchemaPath
	return func() (*domain.Schema, error) { return schema.Load(path) }
}

// OpenWarehouse opens the configured warehouse for queries.
func OpenWarehouse(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	warehouse, err := db.Open(ctx, cfg.DBDriver, cfg.DBPath, db.ModeRead, cfg.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	return warehouse, nil
}

// Migrate creates and seeds the sample star in the configured SQLite warehouse.
func Migrate(ctx context.Context, cfg *config.Config) (int64, error) {
	if cfg.DBDriver != config.DriverSQLite {
		return 0, domain.ErrValidation("migrate supports the %s driver only, got %s", config.DriverSQLite, cfg.DBDriver)
	}
	writeDB, err := db.OpenSQLite(ctx, cfg.DBPath, db.ModeWrite, 1)
	if err != nil {
		return 0, err
	}
	defer writeDB.Close() //nolint:errcheck

	if err := db.RunMigrations(ctx, writeDB); err != nil {
		return 0, err
	}
	return db.MigrationVersion(ctx, writeDB)
}

// New loads the schema and wires the session server and reloader. A reload
// schedule is started when both a schedule and a schema file are configured.
func New(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	source := SchemaSource(cfg)
	s, err := source()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	var m *metrics.Engine
	if deps.Registerer != nil {
		m = metrics.New(deps.Registerer)
	}

	srv, err := session.NewServer(s, engine.NewSQLExecutor(deps.DB, logger), session.Options{
		Dialect:     cfg.SQLDialect(),
		Pretty:      cfg.FormattedSQL,
		Parallelism: cfg.BatchParallelism,
		Metrics:     m,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	rl := session.NewReloader(srv, source, logger)
	if cfg.ReloadCron != "" && cfg.SchemaPath != "" {
		if err := rl.Start(cfg.ReloadCron); err != nil {
			return nil, err
		}
	}

	logger.Info("engine ready",
		"schema", s.Name,
		"stars", len(s.Stars),
		"driver", cfg.DBDriver,
		"dialect", cfg.Dialect,
		"generation", srv.Generation().ID,
	)
	return &App{Server: srv, Reloader: rl, Metrics: m, Logger: logger}, nil
}

// Close stops scheduled reloads.
func (a *App) Close(ctx context.Context) {
	a.Reloader.Stop(ctx)
}
