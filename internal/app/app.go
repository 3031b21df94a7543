// Package app provides the top-level application lifecycle for the matchfeed
// service. It wires together the durable layers, feed store, relay ingestor,
// and HTTP API, and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/monachad/matchfeed/internal/blob/s3"
	"github.com/monachad/matchfeed/internal/config"
	"github.com/monachad/matchfeed/internal/domain"
	"github.com/monachad/matchfeed/internal/feed"
	"github.com/monachad/matchfeed/internal/server"
	"github.com/monachad/matchfeed/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
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

// Run is the main entry point. It wires all dependencies, starts the feed and
// the HTTP API, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting matchfeed",
		slog.String("match_id", a.cfg.Match.ID),
		slog.Bool("enabled", a.cfg.Match.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Evicted entries flow to the blob archive when one is configured.
	var onShadowEvict func([]domain.ShadowTrade)
	var onOriginalEvict func([]domain.OriginalTrade)
	if deps.BlobWriter != nil {
		archiver := s3blob.NewEvictionArchiver(deps.BlobWriter, a.cfg.Match.ID, a.logger)
		onShadowEvict = archiver.ShadowEvicted
		onOriginalEvict = archiver.OriginalEvicted
	}

	store := feed.NewStore(ctx, feed.StoreConfig{
		MatchID:          a.cfg.Match.ID,
		MaxWindow:        a.cfg.Match.MaxWindow,
		Viewer:           a.cfg.Match.ViewerAddress,
		FollowedMonachad: a.cfg.Match.FollowedMonachad,
		Mirror:           deps.Mirror,
		Dedupe:           a.cfg.Match.Dedupe,
		OnShadowEvict:    onShadowEvict,
		OnOriginalEvict:  onOriginalEvict,
		Logger:           a.logger,
	})

	matchFeed := feed.NewMatchFeed(
		a.cfg.Relay.WsURL,
		a.cfg.Match.ID,
		a.cfg.Match.Enabled,
		store,
		deps.Archive,
		a.logger,
	)
	matchFeed.Start(ctx)
	a.closers = append(a.closers, matchFeed.Stop)

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		srv := server.NewServer(
			server.Config{
				Port:        a.cfg.Server.Port,
				CORSOrigins: a.cfg.Server.CORSOrigins,
			},
			server.Handlers{
				Health: handler.NewHealthHandler(a.logger),
				Feed:   handler.NewFeedHandler(store, matchFeed.Connected, a.logger),
			},
			a.logger,
		)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return ctx.Err()
		})
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down matchfeed")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
