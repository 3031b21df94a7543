package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/monachad/matchfeed/internal/domain"
	"github.com/monachad/matchfeed/internal/feed"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore() *feed.Store {
	return feed.NewStore(context.Background(), feed.StoreConfig{
		MatchID: "match-1",
		Viewer:  "0xabcdef0123456789abcdef0123456789abcdef01",
		Logger:  testLogger(),
	})
}

func TestGetFeedReturnsAllViews(t *testing.T) {
	store := newTestStore()
	store.IngestShadow(domain.ShadowTrade{
		MatchID:          "match-1",
		SupporterAddress: "0xabcdef0123456789abcdef0123456789abcdef01",
		TradeType:        domain.TradeOpen,
		Amount:           "100",
		TransactionHash:  "tx1",
	})

	h := NewFeedHandler(store, func() bool { return true }, testLogger())

	rec := httptest.NewRecorder()
	h.GetFeed(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var resp struct {
		MatchID              string                 `json:"matchId"`
		AllShadowTrades      []domain.ShadowTrade   `json:"allShadowTrades"`
		MyShadowTrades       []domain.ShadowTrade   `json:"myShadowTrades"`
		AllOriginalTrades    []domain.OriginalTrade `json:"allOriginalTrades"`
		MyChadOriginalTrades []domain.OriginalTrade `json:"myChadOriginalTrades"`
		IsConnected          bool                   `json:"isConnected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Equal(t, "match-1", resp.MatchID)
	require.Len(t, resp.AllShadowTrades, 1)
	require.Len(t, resp.MyShadowTrades, 1)
	require.Empty(t, resp.AllOriginalTrades)
	require.True(t, resp.IsConnected)
}

func TestGetFeedEmptyListsAreArrays(t *testing.T) {
	h := NewFeedHandler(newTestStore(), nil, testLogger())

	rec := httptest.NewRecorder()
	h.GetFeed(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))

	// Empty views serialize as [] so the web client never sees null.
	body := rec.Body.String()
	require.Contains(t, body, `"allShadowTrades":[]`)
	require.Contains(t, body, `"myShadowTrades":[]`)
	require.Contains(t, body, `"allOriginalTrades":[]`)
	require.Contains(t, body, `"myChadOriginalTrades":[]`)
	require.Contains(t, body, `"isConnected":false`)
}

func TestResetFeedClearsViews(t *testing.T) {
	store := newTestStore()
	store.IngestShadow(domain.ShadowTrade{TransactionHash: "tx1", Amount: "1"})
	require.Len(t, store.AllShadow(), 1)

	h := NewFeedHandler(store, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ResetFeed(rec, httptest.NewRequest(http.MethodPost, "/api/feed/reset", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, store.AllShadow())
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp["status"])
	require.NotEmpty(t, resp["timestamp"])
}
