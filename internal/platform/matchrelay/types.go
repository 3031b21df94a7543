package matchrelay

import (
	"encoding/json"

	"github.com/monachad/matchfeed/internal/domain"
)

// Inbound event names emitted by the match relay. The set is closed: anything
// else is dropped by the dispatcher's default arm so new server-side events
// cannot break older clients.
const (
	EventCopyTrade     = "copyTradeExecuted"
	EventCopyBatch     = "batchCopyTradesExecuted"
	EventMonachadTrade = "monachadTradeExecuted"
	EventMonachadBatch = "batchMonachadTradesExecuted"
	EventMatchUpdated  = "matchUpdated"
)

// Outbound command names.
const (
	cmdSubscribe   = "subscribeToMatch"
	cmdUnsubscribe = "unsubscribeFromMatch"
)

// Envelope is the outer frame of every relay message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ShadowBatch is the payload of a batchCopyTradesExecuted event.
type ShadowBatch struct {
	MatchID string               `json:"matchId"`
	Trades  []domain.ShadowTrade `json:"trades"`
	Count   int                  `json:"count"`
}

// OriginalBatch is the payload of a batchMonachadTradesExecuted event.
type OriginalBatch struct {
	MatchID string                 `json:"matchId"`
	Trades  []domain.OriginalTrade `json:"trades"`
	Count   int                    `json:"count"`
}

// command builds an outbound envelope whose data is the match identifier.
func command(event, matchID string) (Envelope, error) {
	data, err := json.Marshal(matchID)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}
