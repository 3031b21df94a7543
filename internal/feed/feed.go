package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/monachad/matchfeed/internal/domain"
	"github.com/monachad/matchfeed/internal/platform/matchrelay"
)

const (
	// connectRetryDelay is the base delay between initial connection attempts.
	connectRetryDelay = 1 * time.Second

	// maxConnectRetryDelay caps the backoff between initial connection attempts.
	maxConnectRetryDelay = 30 * time.Second
)

// MatchFeed owns the relay connection for one match and routes every inbound
// event into the injected TradeSink. It never reads list state back; the
// store is the sole owner of the four views.
type MatchFeed struct {
	wsURL   string
	matchID string
	enabled bool

	sink    domain.TradeSink
	archive domain.TradeArchive // optional, best-effort
	logger  *slog.Logger

	sessionID string

	mu      sync.Mutex
	client  *matchrelay.WSClient
	started bool

	connected atomic.Bool
	stopOnce  sync.Once
	done      chan struct{}
}

// NewMatchFeed creates a feed for the given match. sink receives every
// classified event; archive, when non-nil, durably records events without
// ever blocking or failing ingestion.
func NewMatchFeed(wsURL, matchID string, enabled bool, sink domain.TradeSink, archive domain.TradeArchive, logger *slog.Logger) *MatchFeed {
	sessionID := uuid.NewString()
	return &MatchFeed{
		wsURL:     wsURL,
		matchID:   matchID,
		enabled:   enabled,
		sink:      sink,
		archive:   archive,
		sessionID: sessionID,
		logger: logger.With(
			slog.String("component", "match_feed"),
			slog.String("match_id", matchID),
			slog.String("session_id", sessionID),
		),
		done: make(chan struct{}),
	}
}

// Start opens the relay connection and subscribes to the match topic. It is a
// no-op when the feed is disabled or the match identifier is empty. Start
// returns immediately; connection failures are retried in the background and
// surface only through Connected().
func (f *MatchFeed) Start(ctx context.Context) {
	if !f.enabled || f.matchID == "" {
		f.logger.Info("match feed disabled, not starting")
		return
	}

	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return
	}
	f.started = true

	client := matchrelay.NewWSClient(f.wsURL)
	client.OnStatusChange(func(connected bool) {
		f.connected.Store(connected)
		if connected {
			f.logger.Info("relay connected")
		} else {
			f.logger.Warn("relay disconnected")
		}
	})
	client.OnShadowTrade(f.handleShadow)
	client.OnShadowBatch(f.handleShadowBatch)
	client.OnOriginalTrade(f.handleOriginal)
	client.OnOriginalBatch(f.handleOriginalBatch)
	client.OnMatchUpdated(f.handleMatchUpdated)
	f.client = client
	f.mu.Unlock()

	go f.run(ctx, client)
}

// run dials until the first successful connect, then subscribes to the match.
// Reconnects after that are the client's job; subscriptions are re-issued by
// the client on every reconnect.
func (f *MatchFeed) run(ctx context.Context, client *matchrelay.WSClient) {
	delay := connectRetryDelay

	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := client.Connect(connCtx)
		cancel()

		if err == nil {
			break
		}

		f.logger.Warn("relay connect failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", delay),
		)

		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxConnectRetryDelay {
			delay = maxConnectRetryDelay
		}
	}

	if err := client.SubscribeToMatch(ctx, f.matchID); err != nil {
		// The subscription is registered before the write, so the client
		// re-issues it on the next reconnect.
		f.logger.Warn("subscribe write failed, will re-issue on reconnect", slog.String("error", err.Error()))
		return
	}
	f.logger.Info("subscribed to match")
}

// Stop unsubscribes from the match topic (best-effort) and closes the relay
// connection. Safe to call multiple times and without a prior Start.
func (f *MatchFeed) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)

		f.mu.Lock()
		client := f.client
		f.mu.Unlock()

		if client == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.UnsubscribeFromMatch(ctx, f.matchID); err != nil {
			f.logger.Debug("unsubscribe on stop", slog.String("error", err.Error()))
		}
		if err := client.Close(); err != nil {
			f.logger.Debug("close relay client", slog.String("error", err.Error()))
		}

		f.connected.Store(false)
		f.logger.Info("match feed stopped")
	})
}

// Connected reports whether the relay connection is currently up.
func (f *MatchFeed) Connected() bool {
	return f.connected.Load()
}

// SessionID identifies this feed instance in logs and archive records.
func (f *MatchFeed) SessionID() string {
	return f.sessionID
}

func (f *MatchFeed) handleShadow(trade domain.ShadowTrade) {
	f.logger.Debug("copy trade executed",
		slog.String("tx", trade.TransactionHash),
		slog.String("supporter", trade.SupporterAddress),
	)
	f.sink.IngestShadow(trade)
	f.archiveShadow([]domain.ShadowTrade{trade})
}

func (f *MatchFeed) handleShadowBatch(batch matchrelay.ShadowBatch) {
	f.logger.Debug("copy trade batch executed", slog.Int("count", len(batch.Trades)))
	if len(batch.Trades) == 0 {
		return
	}
	f.sink.IngestShadowBatch(batch.Trades)
	f.archiveShadow(batch.Trades)
}

func (f *MatchFeed) handleOriginal(trade domain.OriginalTrade) {
	f.logger.Debug("monachad trade executed",
		slog.String("tx", trade.TransactionHash),
		slog.String("monachad", trade.MonachadAddress),
	)
	f.sink.IngestOriginal(trade)
	f.archiveOriginal([]domain.OriginalTrade{trade})
}

func (f *MatchFeed) handleOriginalBatch(batch matchrelay.OriginalBatch) {
	f.logger.Debug("monachad trade batch executed", slog.Int("count", len(batch.Trades)))
	if len(batch.Trades) == 0 {
		return
	}
	f.sink.IngestOriginalBatch(batch.Trades)
	f.archiveOriginal(batch.Trades)
}

// handleMatchUpdated logs the notification. The payload is reserved for
// future use (score changes, match end); nothing consumes it yet.
func (f *MatchFeed) handleMatchUpdated(data json.RawMessage) {
	f.logger.Debug("match updated", slog.Int("payload_bytes", len(data)))
}

func (f *MatchFeed) archiveShadow(trades []domain.ShadowTrade) {
	if f.archive == nil {
		return
	}
	if err := f.archive.ArchiveShadow(context.Background(), trades); err != nil {
		f.logger.Warn("archive shadow trades", slog.String("error", err.Error()))
	}
}

func (f *MatchFeed) archiveOriginal(trades []domain.OriginalTrade) {
	if f.archive == nil {
		return
	}
	if err := f.archive.ArchiveOriginal(context.Background(), trades); err != nil {
		f.logger.Warn("archive monachad trades", slog.String("error", err.Error()))
	}
}
