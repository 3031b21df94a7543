package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/monachad/matchfeed/internal/domain"
)

// uploadTimeout bounds a single archive upload so a stalled provider cannot
// hold the eviction path.
const uploadTimeout = 30 * time.Second

// EvictionArchiver uploads events evicted from the bounded feed windows as
// JSONL objects, so the full stream stays reconstructable after the
// in-memory window has rolled over. Upload failures are logged and dropped;
// eviction must never block or fail ingestion.
type EvictionArchiver struct {
	writer  domain.BlobWriter
	matchID string
	logger  *slog.Logger
}

// NewEvictionArchiver creates an archiver for the given match.
func NewEvictionArchiver(writer domain.BlobWriter, matchID string, logger *slog.Logger) *EvictionArchiver {
	return &EvictionArchiver{
		writer:  writer,
		matchID: matchID,
		logger:  logger.With(slog.String("component", "eviction_archiver"), slog.String("match_id", matchID)),
	}
}

// ShadowEvicted archives a batch of copy trades pushed out of the bounded
// window. Matches the feed store's eviction hook signature.
func (a *EvictionArchiver) ShadowEvicted(trades []domain.ShadowTrade) {
	a.upload("shadow", encodeJSONL(trades), len(trades))
}

// OriginalEvicted archives a batch of Monachad trades pushed out of the
// bounded window.
func (a *EvictionArchiver) OriginalEvicted(trades []domain.OriginalTrade) {
	a.upload("original", encodeJSONL(trades), len(trades))
}

func (a *EvictionArchiver) upload(kind string, data []byte, count int) {
	if len(data) == 0 {
		return
	}

	key := fmt.Sprintf("archive/%s/%s/%s-%s.jsonl",
		a.matchID,
		time.Now().UTC().Format("2006-01-02"),
		kind,
		uuid.NewString(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	if err := a.writer.Put(ctx, key, data, "application/x-ndjson"); err != nil {
		a.logger.Warn("archive evicted trades",
			slog.String("key", key),
			slog.Int("count", count),
			slog.String("error", err.Error()),
		)
		return
	}

	a.logger.Debug("archived evicted trades", slog.String("key", key), slog.Int("count", count))
}

// encodeJSONL serializes each item as one JSON line. Items that fail to
// marshal are skipped; the event shapes contain nothing unmarshalable.
func encodeJSONL[T any](items []T) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			continue
		}
	}
	return buf.Bytes()
}
