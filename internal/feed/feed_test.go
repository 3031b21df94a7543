package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/monachad/matchfeed/internal/domain"
	"github.com/monachad/matchfeed/internal/platform/matchrelay"
)

type recordingSink struct {
	shadows       []domain.ShadowTrade
	shadowBatches [][]domain.ShadowTrade
	originals     []domain.OriginalTrade
	origBatches   [][]domain.OriginalTrade
}

func (r *recordingSink) IngestShadow(t domain.ShadowTrade) { r.shadows = append(r.shadows, t) }
func (r *recordingSink) IngestShadowBatch(ts []domain.ShadowTrade) {
	r.shadowBatches = append(r.shadowBatches, ts)
}
func (r *recordingSink) IngestOriginal(t domain.OriginalTrade) {
	r.originals = append(r.originals, t)
}
func (r *recordingSink) IngestOriginalBatch(ts []domain.OriginalTrade) {
	r.origBatches = append(r.origBatches, ts)
}

type failingArchive struct {
	shadowCalls   int
	originalCalls int
}

func (a *failingArchive) ArchiveShadow(_ context.Context, _ []domain.ShadowTrade) error {
	a.shadowCalls++
	return errors.New("archive unavailable")
}

func (a *failingArchive) ArchiveOriginal(_ context.Context, _ []domain.OriginalTrade) error {
	a.originalCalls++
	return errors.New("archive unavailable")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMatchFeedStopIsIdempotent(t *testing.T) {
	f := NewMatchFeed("ws://localhost:0/ws", "match-1", true, &recordingSink{}, nil, discardLogger())

	// Stop without a prior Start, then again. Neither call may panic.
	require.NotPanics(t, f.Stop)
	require.NotPanics(t, f.Stop)
	require.False(t, f.Connected())
}

func TestMatchFeedDisabledDoesNotStart(t *testing.T) {
	f := NewMatchFeed("ws://localhost:0/ws", "match-1", false, &recordingSink{}, nil, discardLogger())

	f.Start(context.Background())
	require.False(t, f.Connected())
	require.NotPanics(t, f.Stop)
}

func TestMatchFeedEmptyMatchDoesNotStart(t *testing.T) {
	f := NewMatchFeed("ws://localhost:0/ws", "", true, &recordingSink{}, nil, discardLogger())

	f.Start(context.Background())
	require.False(t, f.Connected())
	require.NotPanics(t, f.Stop)
}

func TestMatchFeedRoutesEventsToSink(t *testing.T) {
	sink := &recordingSink{}
	f := NewMatchFeed("ws://localhost:0/ws", "match-1", true, sink, nil, discardLogger())

	f.handleShadow(shadowTrade("tx1", viewerAddr))
	f.handleShadowBatch(matchrelay.ShadowBatch{Trades: []domain.ShadowTrade{
		shadowTrade("tx2", viewerAddr),
		shadowTrade("tx3", otherAddr),
	}})
	f.handleOriginal(originalTrade("tx4", monachadAddr))
	f.handleOriginalBatch(matchrelay.OriginalBatch{Trades: []domain.OriginalTrade{
		originalTrade("tx5", monachadAddr),
	}})

	require.Len(t, sink.shadows, 1)
	require.Len(t, sink.shadowBatches, 1)
	require.Len(t, sink.shadowBatches[0], 2)
	require.Len(t, sink.originals, 1)
	require.Len(t, sink.origBatches, 1)
}

func TestMatchFeedSkipsEmptyBatches(t *testing.T) {
	sink := &recordingSink{}
	f := NewMatchFeed("ws://localhost:0/ws", "match-1", true, sink, nil, discardLogger())

	f.handleShadowBatch(matchrelay.ShadowBatch{})
	f.handleOriginalBatch(matchrelay.OriginalBatch{})

	require.Empty(t, sink.shadowBatches)
	require.Empty(t, sink.origBatches)
}

func TestMatchFeedArchiveFailureDoesNotBlockIngestion(t *testing.T) {
	sink := &recordingSink{}
	archive := &failingArchive{}
	f := NewMatchFeed("ws://localhost:0/ws", "match-1", true, sink, archive, discardLogger())

	f.handleShadow(shadowTrade("tx1", viewerAddr))
	f.handleOriginal(originalTrade("tx2", monachadAddr))

	require.Len(t, sink.shadows, 1)
	require.Len(t, sink.originals, 1)
	require.Equal(t, 1, archive.shadowCalls)
	require.Equal(t, 1, archive.originalCalls)
}
