package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/monachad/matchfeed/internal/blob/s3"
	"github.com/monachad/matchfeed/internal/config"
	"github.com/monachad/matchfeed/internal/domain"
	"github.com/monachad/matchfeed/internal/persist"
	persistredis "github.com/monachad/matchfeed/internal/persist/redis"
	"github.com/monachad/matchfeed/internal/store/postgres"
)

// Dependencies bundles the infrastructure the feed needs: the durable slot
// mirror, the optional trade archive, and the optional blob writer for
// evicted events. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Mirror     domain.FeedMirror
	Archive    domain.TradeArchive
	BlobWriter domain.BlobWriter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Durable slots: Redis when enabled, otherwise process-local ---
	var slots domain.SlotStore
	if cfg.Redis.Enabled {
		redisClient, err := persistredis.New(ctx, persistredis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		slots = persistredis.NewSlotStore(redisClient, cfg.Redis.SlotTTL.Duration)
	} else {
		slots = persist.NewMemorySlots()
	}
	deps.Mirror = persist.NewBridge(slots, logger)

	// --- PostgreSQL trade archive (optional) ---
	if cfg.Archive.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Archive.DSN,
			Host:     cfg.Archive.Host,
			Port:     cfg.Archive.Port,
			Database: cfg.Archive.Database,
			User:     cfg.Archive.User,
			Password: cfg.Archive.Password,
			SSLMode:  cfg.Archive.SSLMode,
			MaxConns: cfg.Archive.PoolMaxConns,
			MinConns: cfg.Archive.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Archive.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.Archive = postgres.NewTradeArchive(pgClient.Pool())
	}

	// --- S3 eviction archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	return deps, cleanup, nil
}
