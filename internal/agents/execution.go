package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"helios/internal/domain/agent"
	"helios/pkg/logger"
)

// ExecutionAgent evaluates market-hours, liquidity, and volatility purely
// to recommend order handling. It only ever contributes HOLD: a weak hold
// when conditions are fine, a firm one when they are not. It never takes
// a directional view.
type ExecutionAgent struct {
	loc *time.Location
	now func() time.Time
	log *logger.Logger
}

// NewExecutionAgent creates the execution-timing agent
func NewExecutionAgent() *ExecutionAgent {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// No tzdata on the host; a fixed offset is close enough for
		// session-edge checks
		loc = time.FixedZone("ET", -5*60*60)
	}
	return &ExecutionAgent{
		loc: loc,
		now: time.Now,
		log: logger.Get().With("agent", agent.NameExecution),
	}
}

// Name returns the agent identifier
func (a *ExecutionAgent) Name() string {
	return agent.NameExecution
}

// Analyze grades current execution conditions and recommends order style
func (a *ExecutionAgent) Analyze(ctx context.Context, in *Input) (*agent.Opinion, error) {
	now := a.now().In(a.loc)

	var unfavorable []string

	if !marketOpen(now) {
		unfavorable = append(unfavorable, "market closed")
	} else if sessionEdge(now) {
		unfavorable = append(unfavorable, "volatile session edge")
	}

	if in.Flow != nil && in.Flow.TotalVolume() > 0 && in.Flow.TotalVolume() < 500 {
		unfavorable = append(unfavorable, "thin option volume")
	}

	if in.Proposal.DTE <= 7 {
		unfavorable = append(unfavorable, "short-dated gamma risk")
	}

	style := "market orders acceptable"
	confidence := 0.2
	riskScore := 3.0
	if len(unfavorable) > 0 {
		style = "use limit orders, slice entries"
		confidence = clamp(0.2+0.25*float64(len(unfavorable)), 0, 0.9)
		riskScore = clamp(3+1.5*float64(len(unfavorable)), 1, 10)
	}

	rationale := fmt.Sprintf("conditions favorable; %s", style)
	if len(unfavorable) > 0 {
		rationale = fmt.Sprintf("%s; %s", strings.Join(unfavorable, ", "), style)
	}

	return newOpinion(a.Name(), in, agent.ActionHold, confidence, rationale, riskScore), nil
}

func marketOpen(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= 9*60+30 && mins < 16*60
}

// sessionEdge flags the first and last 30 minutes of the session
func sessionEdge(t time.Time) bool {
	mins := t.Hour()*60 + t.Minute()
	return (mins >= 9*60+30 && mins < 10*60) || (mins >= 15*60+30 && mins < 16*60)
}
