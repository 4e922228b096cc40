package agent

import (
	"time"

	"github.com/google/uuid"
)

// Action is the closed set of trade recommendations an agent can make
type Action string

const (
	ActionBuyCalls  Action = "buy_calls"
	ActionBuyPuts   Action = "buy_puts"
	ActionSellCalls Action = "sell_calls"
	ActionSellPuts  Action = "sell_puts"
	ActionHold      Action = "hold"
	ActionClose     Action = "close"
)

// Valid reports whether a is a member of the closed action set
func (a Action) Valid() bool {
	switch a {
	case ActionBuyCalls, ActionBuyPuts, ActionSellCalls, ActionSellPuts, ActionHold, ActionClose:
		return true
	}
	return false
}

// RiskAssessment carries the risk view attached to a single opinion
type RiskAssessment struct {
	RiskScore          float64 `json:"risk_score"`          // 0..10, higher is riskier
	PositionSize       float64 `json:"position_size"`       // suggested USD size
	MaxLoss            float64 `json:"max_loss"`
	SuccessProbability float64 `json:"success_probability"` // 0..1
}

// Opinion is a single agent's verdict on a trade proposal.
// Immutable after creation; only appended to decision history.
type Opinion struct {
	ID         uuid.UUID      `json:"id"`
	Agent      string         `json:"agent"`
	Symbol     string         `json:"symbol"`
	Action     Action         `json:"action"`
	Confidence float64        `json:"confidence"` // 0..1
	Rationale  string         `json:"rationale"`
	Risk       RiskAssessment `json:"risk"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Agent identifiers, stable across restarts so weight learning can track them
const (
	NameMarketIntel = "market_intelligence"
	NameTechnical   = "technical"
	NameSentiment   = "sentiment"
	NameExecution   = "execution"
	NameRisk        = "risk"
)

// Names lists every configured agent in panel order
func Names() []string {
	return []string{NameMarketIntel, NameTechnical, NameSentiment, NameExecution, NameRisk}
}
