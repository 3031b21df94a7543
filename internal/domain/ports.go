package domain

import "context"

// TradeSink receives classified relay events. The feed ingestor holds a
// TradeSink and nothing else, so it can be unit-tested against a fake.
type TradeSink interface {
	IngestShadow(trade ShadowTrade)
	IngestShadowBatch(trades []ShadowTrade)
	IngestOriginal(trade OriginalTrade)
	IngestOriginalBatch(trades []OriginalTrade)
}

// FeedMirror is the persistence bridge seen from the store. Saves mirror a
// list after every change; loads hydrate it once on construction. The mirror
// is best-effort: implementations swallow storage failures, and loads report
// ok=false instead of returning errors. A nil FeedMirror disables persistence.
type FeedMirror interface {
	SaveAllShadow(ctx context.Context, matchID string, trades []ShadowTrade)
	SaveMineShadow(ctx context.Context, matchID, supporter string, trades []ShadowTrade)
	SaveAllOriginal(ctx context.Context, matchID string, trades []OriginalTrade)
	SaveMineOriginal(ctx context.Context, matchID, monachad string, trades []OriginalTrade)

	LoadAllShadow(ctx context.Context, matchID string) ([]ShadowTrade, bool)
	LoadMineShadow(ctx context.Context, matchID, supporter string) ([]ShadowTrade, bool)
	LoadAllOriginal(ctx context.Context, matchID string) ([]OriginalTrade, bool)
	LoadMineOriginal(ctx context.Context, matchID, monachad string) ([]OriginalTrade, bool)
}

// SlotStore is a named durable key-value slot. Get returns ErrNotFound when
// the slot has never been written.
type SlotStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// TradeArchive records every ingested event durably, beyond the bounded
// in-memory window. Inserts are best-effort; duplicates are skipped.
type TradeArchive interface {
	ArchiveShadow(ctx context.Context, trades []ShadowTrade) error
	ArchiveOriginal(ctx context.Context, trades []OriginalTrade) error
}

// BlobWriter uploads an object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
