package handler

import (
	"log/slog"
	"net/http"

	"github.com/monachad/matchfeed/internal/domain"
	"github.com/monachad/matchfeed/internal/feed"
)

// FeedHandler serves the four match feed views and the reset operation. The
// choice between "all" and "mine" views belongs to the rendering layer; this
// API always returns all four.
type FeedHandler struct {
	store     *feed.Store
	connected func() bool
	logger    *slog.Logger
}

// NewFeedHandler creates a FeedHandler over the given store. connected
// reports the relay connection status and may be nil when the feed is
// disabled.
func NewFeedHandler(store *feed.Store, connected func() bool, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		store:     store,
		connected: connected,
		logger:    logger.With(slog.String("handler", "feed")),
	}
}

// feedResponse mirrors the shape the web client consumes.
type feedResponse struct {
	MatchID              string                 `json:"matchId"`
	AllShadowTrades      []domain.ShadowTrade   `json:"allShadowTrades"`
	MyShadowTrades       []domain.ShadowTrade   `json:"myShadowTrades"`
	AllOriginalTrades    []domain.OriginalTrade `json:"allOriginalTrades"`
	MyChadOriginalTrades []domain.OriginalTrade `json:"myChadOriginalTrades"`
	IsConnected          bool                   `json:"isConnected"`
}

// GetFeed returns the four trade views and the connection flag.
// GET /api/feed
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	isConnected := false
	if h.connected != nil {
		isConnected = h.connected()
	}

	writeJSON(w, http.StatusOK, feedResponse{
		MatchID:              h.store.MatchID(),
		AllShadowTrades:      h.store.AllShadow(),
		MyShadowTrades:       h.store.MineShadow(),
		AllOriginalTrades:    h.store.AllOriginal(),
		MyChadOriginalTrades: h.store.MineOriginal(),
		IsConnected:          isConnected,
	})
}

// ResetFeed clears the in-memory views. Durable slots are not touched.
// POST /api/feed/reset
func (h *FeedHandler) ResetFeed(w http.ResponseWriter, r *http.Request) {
	h.store.Reset()
	h.logger.InfoContext(r.Context(), "feed reset", slog.String("match_id", h.store.MatchID()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
