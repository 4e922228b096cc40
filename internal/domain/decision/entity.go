package decision

import (
	"time"

	"github.com/google/uuid"

	"helios/internal/domain/agent"
)

// HoldingPeriod buckets how long an approved trade is expected to stay open
type HoldingPeriod string

const (
	HoldingIntraday HoldingPeriod = "intraday"
	HoldingDays     HoldingPeriod = "days"
	HoldingWeeks    HoldingPeriod = "weeks"
	HoldingMonths   HoldingPeriod = "months"
)

// ExecutionRecommendation is the sizing guidance attached to a decision
type ExecutionRecommendation struct {
	MaxPositionSize float64       `json:"max_position_size"` // USD
	StopLossPct     float64       `json:"stop_loss_pct"`
	ProfitTargetPct float64       `json:"profit_target_pct"`
	HoldingPeriod   HoldingPeriod `json:"holding_period"`
}

// ConsensusDecision is the immutable record of one decision cycle
type ConsensusDecision struct {
	ID     uuid.UUID    `json:"id"`
	Symbol string       `json:"symbol"`
	Action agent.Action `json:"action"`

	// Score is agreement-weighted confidence behind Action, 0..1
	Score float64 `json:"score"`

	Opinions []agent.Opinion `json:"opinions"`

	RiskApproved bool   `json:"risk_approved"`
	RiskReason   string `json:"risk_reason,omitempty"`

	HumanApprovalRequired bool     `json:"human_approval_required"`
	ApprovalReasons       []string `json:"approval_reasons,omitempty"`

	Execution ExecutionRecommendation `json:"execution"`

	CreatedAt time.Time `json:"created_at"`
}

// TradeOutcome is a labeled result fed back into agent weight learning
type TradeOutcome struct {
	DecisionID uuid.UUID       `json:"decision_id"`
	Symbol     string          `json:"symbol"`
	Profitable bool            `json:"profitable"`
	PnL        float64         `json:"pnl"`
	Opinions   []agent.Opinion `json:"opinions"`
	ClosedAt   time.Time       `json:"closed_at"`
}
