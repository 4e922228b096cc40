package agents

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"helios/internal/domain/agent"
	"helios/internal/domain/alert"
	"helios/internal/domain/portfolio"
	"helios/internal/domain/signal"
)

// Input is the shared read-only context every panel agent analyzes.
// It is assembled once per proposal and never mutated by agents.
type Input struct {
	Proposal signal.TradeProposal

	// Flow is the aggregated option flow for the symbol, nil when the
	// market data collaborator has none
	Flow *portfolio.FlowSnapshot

	// Signals are recent trading signals for the symbol, newest last
	Signals []signal.TradingSignal
}

// Agent scores one trade proposal. A nil opinion with nil error means the
// agent abstains from this cycle.
type Agent interface {
	Name() string
	Analyze(ctx context.Context, in *Input) (*agent.Opinion, error)
}

// Shared helper math used by the individual agents.

// newOpinion assembles an opinion with a derived risk assessment
func newOpinion(name string, in *Input, action agent.Action, confidence float64, rationale string, riskScore float64) *agent.Opinion {
	confidence = clamp(confidence, 0, 1)
	riskScore = clamp(riskScore, 0, 10)

	return &agent.Opinion{
		ID:         uuid.New(),
		Agent:      name,
		Symbol:     in.Proposal.Symbol,
		Action:     action,
		Confidence: confidence,
		Rationale:  rationale,
		Risk: agent.RiskAssessment{
			RiskScore:          riskScore,
			PositionSize:       suggestedPositionSize(in.Proposal),
			MaxLoss:            in.Proposal.MaxRisk,
			SuccessProbability: successProbability(confidence, riskScore),
		},
		CreatedAt: time.Now(),
	}
}

// suggestedPositionSize sizes exposure so that a stopped-out trade loses
// at most the proposal's risk ceiling: size = risk / stop distance
func suggestedPositionSize(p signal.TradeProposal) float64 {
	stop := stopDistance(p.Horizon)
	if stop <= 0 {
		return 0
	}
	return p.MaxRisk / stop
}

// stopDistance is the assumed stop-loss distance per horizon
func stopDistance(h alert.Horizon) float64 {
	if h == alert.HorizonLeap {
		return 0.30
	}
	return 0.20
}

// successProbability maps confidence and risk into a rough win estimate
func successProbability(confidence, riskScore float64) float64 {
	return clamp(0.30+0.45*confidence-0.02*riskScore, 0.05, 0.95)
}

// weightedSignalSentiment averages signal sentiment weighted by confidence
func weightedSignalSentiment(signals []signal.TradingSignal) (float64, bool) {
	var sum, weight float64
	for _, sg := range signals {
		sum += sg.Sentiment * sg.Confidence
		weight += sg.Confidence
	}
	if weight == 0 {
		return 0, false
	}
	return sum / weight, true
}

// directionalAction maps a proposal direction to its entry action
func directionalAction(d signal.Direction) agent.Action {
	if d == signal.DirectionBearish {
		return agent.ActionBuyPuts
	}
	return agent.ActionBuyCalls
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
