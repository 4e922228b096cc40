package signal

import (
	"time"

	"github.com/google/uuid"

	"helios/internal/domain/alert"
)

// Direction is the directional read of a trade proposal
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
)

// TradingSignal is a raw directional signal from the market data collaborator
type TradingSignal struct {
	Ticker     string    `json:"ticker"`
	Sentiment  float64   `json:"sentiment"`  // -1..1
	Confidence float64   `json:"confidence"` // 0..1
	EntryPrice float64   `json:"entry_price"`
	Timestamp  time.Time `json:"timestamp"`
}

// TradeProposal is a directional trade idea synthesized from a processed alert
type TradeProposal struct {
	ID        uuid.UUID        `json:"id"`
	Symbol    string           `json:"symbol"`
	Direction Direction        `json:"direction"`
	Side      alert.OptionSide `json:"side"`

	Entry   float64 `json:"entry"`
	Target  float64 `json:"target"`
	MaxRisk float64 `json:"max_risk"` // per-trade USD ceiling, config-driven

	Horizon                 alert.Horizon `json:"horizon"`
	Conviction              float64       `json:"conviction"`
	InstitutionalConfidence float64       `json:"institutional_confidence"`
	Moneyness               float64       `json:"moneyness"`
	Premium                 float64       `json:"premium"`
	DTE                     int           `json:"dte"`
	Expiry                  time.Time     `json:"expiry"`

	// Rationale is advisory text for humans, never used for control decisions
	Rationale string `json:"rationale"`

	CreatedAt time.Time `json:"created_at"`
}

// DirectionConsistent reports whether the proposal direction matches its
// option side (call implies bullish, put implies bearish)
func (p TradeProposal) DirectionConsistent() bool {
	switch p.Side {
	case alert.SideCall:
		return p.Direction == DirectionBullish
	case alert.SidePut:
		return p.Direction == DirectionBearish
	default:
		return false
	}
}
