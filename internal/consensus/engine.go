package consensus

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"helios/internal/domain/agent"
	"helios/internal/domain/alert"
	"helios/internal/domain/decision"
	"helios/internal/domain/signal"
	"helios/internal/metrics"
	"helios/pkg/logger"
)

// Human sign-off triggers, each an independent check on the raw opinions
const (
	minAutoScore      = 0.6
	maxOpinionRisk    = 7.0
	maxOpinionSize    = 100_000.0
	maxAlignedActions = 2
)

// Result is the aggregate verdict over one cycle's opinions
type Result struct {
	Action agent.Action
	Score  float64

	HumanApprovalRequired bool
	ApprovalReasons       []string

	// RespondingWeight is the total weight of agents that produced an
	// opinion this cycle; the score is normalized against it
	RespondingWeight float64
}

// Engine aggregates agent opinions into a single decision using
// confidence-weighted voting.
type Engine struct {
	weights *WeightTable
	log     *logger.Logger
}

// NewEngine creates a consensus engine over the given weight table
func NewEngine(weights *WeightTable) *Engine {
	return &Engine{
		weights: weights,
		log:     logger.Get().With("component", "consensus_engine"),
	}
}

// Weights exposes the weight table for outcome-driven learning
func (e *Engine) Weights() *WeightTable {
	return e.weights
}

// Evaluate scores the opinions and returns the aggregate result.
// ok is false when no opinions exist: the cycle produces no decision.
//
// The winning score is normalized by the weight of responding agents
// only, not the full table, so abstentions do not silently depress the
// confidence of the agents that did speak.
func (e *Engine) Evaluate(opinions []agent.Opinion) (Result, bool) {
	if len(opinions) == 0 {
		return Result{Action: agent.ActionHold}, false
	}

	weights := e.weights.Snapshot()

	scores := make(map[agent.Action]float64)
	var order []agent.Action
	var respondingWeight float64

	for _, op := range opinions {
		w, ok := weights[op.Agent]
		if !ok {
			e.log.Warnw("Opinion from unweighted agent ignored in scoring", "agent", op.Agent)
			continue
		}
		respondingWeight += w

		if _, seen := scores[op.Action]; !seen {
			order = append(order, op.Action)
		}
		scores[op.Action] += op.Confidence * w
	}

	res := Result{Action: agent.ActionHold, RespondingWeight: respondingWeight}

	// Highest score wins; iteration over first-seen order keeps ties
	// deterministic
	best := -1.0
	for _, action := range order {
		if scores[action] > best {
			best = scores[action]
			res.Action = action
		}
	}
	if respondingWeight > 0 && best > 0 {
		res.Score = best / respondingWeight
	}

	res.HumanApprovalRequired, res.ApprovalReasons = approvalChecks(res.Score, opinions)

	return res, true
}

// approvalChecks runs the four independent sign-off triggers against the
// raw opinions, not the chosen action
func approvalChecks(score float64, opinions []agent.Opinion) (bool, []string) {
	var reasons []string

	if score < minAutoScore {
		reasons = append(reasons, fmt.Sprintf("consensus score %.2f below %.2f", score, minAutoScore))
	}

	distinct := make(map[agent.Action]bool)
	for _, op := range opinions {
		distinct[op.Action] = true

		if op.Risk.RiskScore > maxOpinionRisk {
			reasons = append(reasons, fmt.Sprintf("%s risk score %.1f above %.0f", op.Agent, op.Risk.RiskScore, maxOpinionRisk))
		}
		if op.Risk.PositionSize > maxOpinionSize {
			reasons = append(reasons, fmt.Sprintf("%s position size $%.0f above $%.0f", op.Agent, op.Risk.PositionSize, maxOpinionSize))
		}
	}

	if len(distinct) > maxAlignedActions {
		reasons = append(reasons, fmt.Sprintf("%d conflicting recommendations", len(distinct)))
	}

	return len(reasons) > 0, reasons
}

// Decide assembles the immutable decision record from the cycle's
// opinions, the aggregate result, and the risk gate verdict.
func (e *Engine) Decide(
	proposal signal.TradeProposal,
	opinions []agent.Opinion,
	res Result,
	riskApproved bool,
	riskReason string,
) *decision.ConsensusDecision {
	d := &decision.ConsensusDecision{
		ID:       uuid.New(),
		Symbol:   proposal.Symbol,
		Action:   res.Action,
		Score:    res.Score,
		Opinions: opinions,

		RiskApproved: riskApproved,
		RiskReason:   riskReason,

		HumanApprovalRequired: res.HumanApprovalRequired,
		ApprovalReasons:       res.ApprovalReasons,

		Execution: executionRecommendation(proposal),

		CreatedAt: time.Now(),
	}

	metrics.DecisionsTotal.WithLabelValues(string(d.Action)).Inc()
	metrics.ConsensusScore.Observe(d.Score)
	if d.HumanApprovalRequired {
		metrics.HumanApprovals.Inc()
	}

	e.log.Infow("Consensus decision",
		"symbol", d.Symbol,
		"action", d.Action,
		"score", d.Score,
		"opinions", len(opinions),
		"risk_approved", d.RiskApproved,
		"human_approval", d.HumanApprovalRequired,
	)

	return d
}

// executionRecommendation derives sizing guidance from the proposal
func executionRecommendation(p signal.TradeProposal) decision.ExecutionRecommendation {
	stopPct := 0.20
	if p.Horizon == alert.HorizonLeap {
		stopPct = 0.30
	}

	profitPct := 0.0
	if p.Entry > 0 {
		profitPct = abs(p.Target-p.Entry) / p.Entry
	}

	return decision.ExecutionRecommendation{
		MaxPositionSize: p.MaxRisk / stopPct,
		StopLossPct:     stopPct,
		ProfitTargetPct: profitPct,
		HoldingPeriod:   holdingPeriod(p),
	}
}

func holdingPeriod(p signal.TradeProposal) decision.HoldingPeriod {
	switch {
	case p.DTE <= 1:
		return decision.HoldingIntraday
	case p.DTE <= 10:
		return decision.HoldingDays
	case p.DTE <= 90:
		return decision.HoldingWeeks
	default:
		return decision.HoldingMonths
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
