// Package app provides the top-level application lifecycle management for
// the order intake service. It wires together all dependencies (stores,
// caches, chain clients, validators, the cosigner and the HTTP server) and
// runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/orderpool/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the HTTP
// server and background workers, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Server.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})

	if deps.Analytics != nil {
		flush := a.cfg.S3.FlushInterval.Duration
		g.Go(func() error {
			deps.Analytics.Run(ctx, flush)
			return nil
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			a.runArchiver(ctx, deps)
			return nil
		})
	}

	return g.Wait()
}

// runArchiver uploads monthly archives of terminal orders once a day. Months
// already present in the bucket are skipped.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, -1, 0)
			n, err := deps.Archiver.ArchiveOrders(ctx, cutoff)
			if err != nil {
				a.logger.Warn("order archive failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				a.logger.Info("orders archived", slog.Int64("count", n))
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
