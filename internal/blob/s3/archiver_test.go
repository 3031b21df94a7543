package s3blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/monachad/matchfeed/internal/domain"
)

type capturingWriter struct {
	puts []capturedPut
	err  error
}

type capturedPut struct {
	path        string
	data        []byte
	contentType string
}

func (w *capturingWriter) Put(_ context.Context, path string, data []byte, contentType string) error {
	w.puts = append(w.puts, capturedPut{path: path, data: data, contentType: contentType})
	return w.err
}

func archiverLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEvictionArchiverShadow(t *testing.T) {
	writer := &capturingWriter{}
	a := NewEvictionArchiver(writer, "match-1", archiverLogger())

	a.ShadowEvicted([]domain.ShadowTrade{
		{MatchID: "match-1", TransactionHash: "tx1", Amount: "100"},
		{MatchID: "match-1", TransactionHash: "tx2", Amount: "200"},
	})

	require.Len(t, writer.puts, 1)
	put := writer.puts[0]

	require.True(t, strings.HasPrefix(put.path, "archive/match-1/"), "key %s", put.path)
	require.Contains(t, put.path, "/shadow-")
	require.True(t, strings.HasSuffix(put.path, ".jsonl"))
	require.Equal(t, "application/x-ndjson", put.contentType)

	lines := strings.Split(strings.TrimRight(string(put.data), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"transactionHash":"tx1"`)
	require.Contains(t, lines[1], `"transactionHash":"tx2"`)
}

func TestEvictionArchiverOriginalKeyKind(t *testing.T) {
	writer := &capturingWriter{}
	a := NewEvictionArchiver(writer, "match-1", archiverLogger())

	a.OriginalEvicted([]domain.OriginalTrade{{TransactionHash: "tx1", Amount: "1"}})

	require.Len(t, writer.puts, 1)
	require.Contains(t, writer.puts[0].path, "/original-")
}

func TestEvictionArchiverSkipsEmptyBatches(t *testing.T) {
	writer := &capturingWriter{}
	a := NewEvictionArchiver(writer, "match-1", archiverLogger())

	a.ShadowEvicted(nil)
	a.OriginalEvicted([]domain.OriginalTrade{})

	require.Empty(t, writer.puts)
}

func TestEvictionArchiverSwallowsUploadErrors(t *testing.T) {
	writer := &capturingWriter{err: errors.New("bucket gone")}
	a := NewEvictionArchiver(writer, "match-1", archiverLogger())

	require.NotPanics(t, func() {
		a.ShadowEvicted([]domain.ShadowTrade{{TransactionHash: "tx1", Amount: "1"}})
	})
	require.Len(t, writer.puts, 1)
}
