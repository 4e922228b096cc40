package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"helios/internal/domain/agent"
	"helios/internal/domain/signal"
	"helios/pkg/logger"
)

// riskHoldThreshold forces a HOLD once the market-risk score reaches it
const riskHoldThreshold = 8.0

// RiskAgent computes an independent market-risk score and votes
// accordingly: a forced HOLD when risk is extreme, otherwise a cautious
// vote with the proposal's direction.
type RiskAgent struct {
	loc *time.Location
	now func() time.Time
	log *logger.Logger
}

// NewRiskAgent creates the risk agent
func NewRiskAgent() *RiskAgent {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}
	return &RiskAgent{
		loc: loc,
		now: time.Now,
		log: logger.Get().With("agent", agent.NameRisk),
	}
}

// Name returns the agent identifier
func (a *RiskAgent) Name() string {
	return agent.NameRisk
}

// Analyze scores market risk from base 5, adjusted by premium size,
// signal concentration, session timing, day of week, and liquidity,
// clamped to [1,10].
func (a *RiskAgent) Analyze(ctx context.Context, in *Input) (*agent.Opinion, error) {
	score := 5.0
	var factors []string

	switch {
	case in.Proposal.Premium > 1_000_000:
		score += 1.0
		factors = append(factors, "outsized premium concentration")
	case in.Proposal.Premium < 100_000:
		score -= 0.5
	}

	if n := sameDirectionSignals(in); n >= 10 {
		score += 1.0
		factors = append(factors, "crowded signal concentration")
	}

	now := a.now().In(a.loc)
	if sessionEdge(now) {
		score += 1.0
		factors = append(factors, "session edge")
	}
	if wd := now.Weekday(); wd == time.Monday || wd == time.Friday {
		score += 0.5
		factors = append(factors, "weekend-adjacent session")
	}

	if in.Flow == nil || in.Flow.TotalVolume() < 500 {
		score += 1.0
		factors = append(factors, "thin liquidity")
	}

	if in.Proposal.DTE < 14 {
		score += 1.0
		factors = append(factors, "near-dated expiry")
	}

	score = clamp(score, 1, 10)

	if score >= riskHoldThreshold {
		rationale := fmt.Sprintf("market risk %.1f/10 (%s): standing aside", score, strings.Join(factors, ", "))
		return newOpinion(a.Name(), in, agent.ActionHold, 0.9, rationale, score), nil
	}

	// Acceptable risk: back the proposal direction, conservatively
	confidence := clamp(0.65-score*0.04, 0.3, 0.6)
	rationale := fmt.Sprintf("market risk %.1f/10 acceptable", score)
	if len(factors) > 0 {
		rationale += " (" + strings.Join(factors, ", ") + ")"
	}

	return newOpinion(a.Name(), in, directionalAction(in.Proposal.Direction), confidence, rationale, score), nil
}

// sameDirectionSignals counts recent signals agreeing with the proposal
func sameDirectionSignals(in *Input) int {
	n := 0
	for _, sg := range in.Signals {
		if (sg.Sentiment > 0) == (in.Proposal.Direction == signal.DirectionBullish) {
			n++
		}
	}
	return n
}
