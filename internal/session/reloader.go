package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"aggnav/internal/domain"
)

// SchemaSource produces the schema for the next generation.
type SchemaSource func() (*domain.Schema, error)

// Reloader installs new generations from a schema source, on demand or on a
// cron schedule.
type Reloader struct {
	cron   *cron.Cron
	server *Server
	source SchemaSource
	logger *slog.Logger

	mu      sync.Mutex
	entry   cron.EntryID
	started bool
}

// NewReloader creates a reloader for server.
func NewReloader(server *Server, source SchemaSource, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		cron:   cron.New(),
		server: server,
		source: source,
		logger: logger,
	}
}

// ReloadNow reads the schema source and installs a new generation. A source
// error leaves the current generation in place.
func (r *Reloader) ReloadNow() (*Generation, error) {
	schema, err := r.source()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return r.server.Reload(schema)
}

// Start schedules reloads with a standard cron spec and starts the scheduler.
func (r *Reloader) Start(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		r.cron.Remove(r.entry)
	}
	entry, err := r.cron.AddFunc(spec, func() {
		if _, err := r.ReloadNow(); err != nil {
			r.logger.Warn("scheduled schema reload failed", "schedule", spec, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reload schedule %q: %w", spec, err)
	}
	r.entry = entry
	if !r.started {
		r.cron.Start()
		r.started = true
	}
	r.logger.Info("schema reload scheduled", "schedule", spec)
	return nil
}

// Stop halts the scheduler and waits for a running reload to finish or ctx to end.
func (r *Reloader) Stop(ctx context.Context) {
	r.mu.Lock()
	started := r.started
	r.started = false
	r.mu.Unlock()
	if !started {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
	r.logger.Info("schema reloader stopped")
}
