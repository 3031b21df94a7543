// Package domain defines the match feed event model and the interfaces
// implemented by the transport, store, and persistence layers.
package domain

import (
	"fmt"
	"math/big"
)

// TradeType is the direction of a trade relative to the position.
type TradeType string

const (
	TradeOpen  TradeType = "OPEN"
	TradeClose TradeType = "CLOSE"
)

// PositionType is the side of a leveraged position.
type PositionType string

const (
	PositionLong  PositionType = "LONG"
	PositionShort PositionType = "SHORT"
)

// ShadowTrade is a copy trade executed on behalf of a supporter, mirroring a
// Monachad's original trade. JSON field names match the relay wire format and
// the durable slot format, so events round-trip byte-compatibly with state
// persisted by earlier clients.
type ShadowTrade struct {
	MatchID          string       `json:"matchId"`
	MonachadAddress  string       `json:"monachadAddress"`
	SupporterAddress string       `json:"supporterAddress"`
	TradeType        TradeType    `json:"tradeType"`
	Dex              string       `json:"dex"`
	Amount           string       `json:"amount"`
	PositionType     PositionType `json:"positionType,omitempty"`
	Leverage         string       `json:"leverage,omitempty"`
	AssetID          string       `json:"assetId,omitempty"`
	TransactionHash  string       `json:"transactionHash"`
	Timestamp        int64        `json:"timestamp"`
}

// OriginalTrade is a trade executed directly by a Monachad (not a copy).
// Identical to ShadowTrade minus the supporter.
type OriginalTrade struct {
	MatchID         string       `json:"matchId"`
	MonachadAddress string       `json:"monachadAddress"`
	TradeType       TradeType    `json:"tradeType"`
	Dex             string       `json:"dex"`
	Amount          string       `json:"amount"`
	PositionType    PositionType `json:"positionType,omitempty"`
	Leverage        string       `json:"leverage,omitempty"`
	AssetID         string       `json:"assetId,omitempty"`
	TransactionHash string       `json:"transactionHash"`
	Timestamp       int64        `json:"timestamp"`
}

// AmountUnits parses the trade amount as an integer in the dex's smallest
// unit. The ingest path never calls this; it exists for consumers that need
// numerics (archive reports, UI formatting).
func (t ShadowTrade) AmountUnits() (*big.Int, error) {
	return parseUnits(t.Amount)
}

// AmountUnits parses the trade amount as an integer in the dex's smallest unit.
func (t OriginalTrade) AmountUnits() (*big.Int, error) {
	return parseUnits(t.Amount)
}

func parseUnits(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("domain: amount %q is not a base-10 integer", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("domain: amount %q is negative", s)
	}
	return n, nil
}
