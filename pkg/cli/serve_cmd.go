package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"aggnav/internal/api"
	"aggnav/internal/app"
	"aggnav/internal/middleware"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		listen      string
		migrate     bool
		sessionIdle time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if migrate {
				v, err := app.Migrate(ctx, cfg)
				if err != nil {
					return err
				}
				logger.Info("sample star migrated", "path", cfg.DBPath, "version", v)
			}

			warehouse, err := app.OpenWarehouse(ctx, cfg)
			if err != nil {
				return err
			}
			defer warehouse.Close() //nolint:errcheck

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			a, err := app.New(ctx, app.Deps{Cfg: cfg, DB: warehouse, Logger: logger, Registerer: reg})
			if err != nil {
				return err
			}

			router := api.NewRouter(ctx, api.NewHandler(a.Server, a.Reloader, logger), api.RouterConfig{
				CORSAllowedOrigins: cfg.CORSAllowedOrigins,
				RateLimit: middleware.RateLimitConfig{
					RequestsPerSecond: cfg.RateLimitRPS,
					Burst:             cfg.RateLimitBurst,
				},
				Gatherer: reg,
			})
			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go expireSessions(ctx, a, sessionIdle)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API listening", "addr", cfg.ListenAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			logger.Info("shutting down")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown", "error", err)
			}
			a.Close(shutdownCtx)
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "HTTP listen address (overrides LISTEN_ADDR)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create and seed the sample star before serving")
	cmd.Flags().DurationVar(&sessionIdle, "session-idle", 30*time.Minute, "Close sessions idle for longer than this")
	return cmd
}

func expireSessions(ctx context.Context, a *app.App, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Server.Expire(idle); n > 0 {
				a.Logger.Debug("expired idle sessions", "count", n)
			}
		}
	}
}
