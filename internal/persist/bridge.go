// Package persist mirrors the feed store's lists to durable slots so a match
// view survives restarts. The durable layer is a pure best-effort mirror: any
// read, parse, or write failure is swallowed and the in-memory store remains
// the source of truth.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/monachad/matchfeed/internal/domain"
)

// Slot key schema. Kept byte-compatible with state persisted by earlier
// clients, including the follower-era naming of the mine-original slot.
//
//	matchFeed_allShadowTrades_{matchId}
//	matchFeed_myShadowTrades_{matchId}_{viewer}
//	matchFeed_allOriginalTrades_{matchId}
//	matchFeed_myChadOriginalTrades_{matchId}_{monachad}
func allShadowKey(matchID string) string { return "matchFeed_allShadowTrades_" + matchID }

func mineShadowKey(matchID, viewer string) string {
	return "matchFeed_myShadowTrades_" + matchID + "_" + viewer
}

func allOriginalKey(matchID string) string { return "matchFeed_allOriginalTrades_" + matchID }

func mineOriginalKey(matchID, monachad string) string {
	return "matchFeed_myChadOriginalTrades_" + matchID + "_" + monachad
}

// Bridge implements domain.FeedMirror over a SlotStore. Each slot holds a
// JSON array of the respective event shape.
type Bridge struct {
	slots  domain.SlotStore
	logger *slog.Logger
}

// NewBridge creates a Bridge over the given slot store.
func NewBridge(slots domain.SlotStore, logger *slog.Logger) *Bridge {
	return &Bridge{
		slots:  slots,
		logger: logger.With(slog.String("component", "persist_bridge")),
	}
}

// SaveAllShadow mirrors the bounded copy-trade list.
func (b *Bridge) SaveAllShadow(ctx context.Context, matchID string, trades []domain.ShadowTrade) {
	b.save(ctx, allShadowKey(matchID), trades)
}

// SaveMineShadow mirrors the viewer's copy-trade list.
func (b *Bridge) SaveMineShadow(ctx context.Context, matchID, supporter string, trades []domain.ShadowTrade) {
	if supporter == "" {
		return
	}
	b.save(ctx, mineShadowKey(matchID, supporter), trades)
}

// SaveAllOriginal mirrors the bounded Monachad-trade list.
func (b *Bridge) SaveAllOriginal(ctx context.Context, matchID string, trades []domain.OriginalTrade) {
	b.save(ctx, allOriginalKey(matchID), trades)
}

// SaveMineOriginal mirrors the followed Monachad's trade list.
func (b *Bridge) SaveMineOriginal(ctx context.Context, matchID, monachad string, trades []domain.OriginalTrade) {
	if monachad == "" {
		return
	}
	b.save(ctx, mineOriginalKey(matchID, monachad), trades)
}

// LoadAllShadow hydrates the bounded copy-trade list.
func (b *Bridge) LoadAllShadow(ctx context.Context, matchID string) ([]domain.ShadowTrade, bool) {
	return load[domain.ShadowTrade](b, ctx, allShadowKey(matchID))
}

// LoadMineShadow hydrates the viewer's copy-trade list.
func (b *Bridge) LoadMineShadow(ctx context.Context, matchID, supporter string) ([]domain.ShadowTrade, bool) {
	if supporter == "" {
		return nil, false
	}
	return load[domain.ShadowTrade](b, ctx, mineShadowKey(matchID, supporter))
}

// LoadAllOriginal hydrates the bounded Monachad-trade list.
func (b *Bridge) LoadAllOriginal(ctx context.Context, matchID string) ([]domain.OriginalTrade, bool) {
	return load[domain.OriginalTrade](b, ctx, allOriginalKey(matchID))
}

// LoadMineOriginal hydrates the followed Monachad's trade list.
func (b *Bridge) LoadMineOriginal(ctx context.Context, matchID, monachad string) ([]domain.OriginalTrade, bool) {
	if monachad == "" {
		return nil, false
	}
	return load[domain.OriginalTrade](b, ctx, mineOriginalKey(matchID, monachad))
}

// save serializes and writes one slot. Failures are logged at debug and
// otherwise ignored; they must never interrupt ingestion.
func (b *Bridge) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Debug("marshal slot", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := b.slots.Set(ctx, key, data); err != nil {
		b.logger.Debug("write slot", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// load reads and decodes one slot. Any failure reports ok=false so the caller
// keeps its current list.
func load[T any](b *Bridge, ctx context.Context, key string) ([]T, bool) {
	data, err := b.slots.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.logger.Debug("read slot", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	var trades []T
	if err := json.Unmarshal(data, &trades); err != nil {
		b.logger.Debug("decode slot", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return trades, true
}

// Compile-time interface check.
var _ domain.FeedMirror = (*Bridge)(nil)
