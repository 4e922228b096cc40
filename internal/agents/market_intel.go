package agents

import (
	"context"
	"fmt"
	"math"

	"helios/internal/domain/agent"
	"helios/pkg/logger"
)

// Directional thresholds on the combined flow/signal sentiment
const (
	intelBullishFloor = 0.15
	intelBearishCeil  = -0.15
)

// MarketIntelAgent scores directional bias from aggregated option flow:
// premium-weighted call/put imbalance plus recent signal sentiment.
type MarketIntelAgent struct {
	log *logger.Logger
}

// NewMarketIntelAgent creates the market intelligence agent
func NewMarketIntelAgent() *MarketIntelAgent {
	return &MarketIntelAgent{
		log: logger.Get().With("agent", agent.NameMarketIntel),
	}
}

// Name returns the agent identifier
func (a *MarketIntelAgent) Name() string {
	return agent.NameMarketIntel
}

// Analyze reads flow imbalance and signal drift. Abstains when neither
// flow nor signals exist for the symbol.
func (a *MarketIntelAgent) Analyze(ctx context.Context, in *Input) (*agent.Opinion, error) {
	hasFlow := in.Flow != nil && (in.Flow.TotalVolume() > 0 || in.Flow.CallPremium+in.Flow.PutPremium > 0)
	signalSent, hasSignals := weightedSignalSentiment(in.Signals)

	if !hasFlow && !hasSignals {
		return nil, nil
	}

	var flowSent, vwPremium float64
	if hasFlow {
		flowSent = in.Flow.Sentiment()
		if v := in.Flow.TotalVolume(); v > 0 {
			vwPremium = (in.Flow.CallPremium + in.Flow.PutPremium) / float64(v)
		}
	}

	var combined float64
	switch {
	case hasFlow && hasSignals:
		combined = 0.7*flowSent + 0.3*signalSent
	case hasFlow:
		combined = flowSent
	default:
		combined = signalSent
	}

	action := agent.ActionHold
	switch {
	case combined > intelBullishFloor:
		action = agent.ActionBuyCalls
	case combined < intelBearishCeil:
		action = agent.ActionBuyPuts
	}

	confidence := math.Abs(combined) * 0.8
	if vwPremium >= 500 {
		// Rich per-contract premium means the flow is conviction money,
		// not lottery tickets
		confidence += 0.1
	}
	confidence = clamp(confidence, 0.05, 0.95)

	riskScore := 5.0
	if action != agent.ActionHold && !agreesWithProposal(action, in) {
		riskScore += 1.5
	}

	rationale := fmt.Sprintf(
		"flow sentiment %.2f, signal sentiment %.2f, vw premium $%.0f, gex %.0f",
		flowSent, signalSent, vwPremium, gexOf(in),
	)

	return newOpinion(a.Name(), in, action, confidence, rationale, riskScore), nil
}

func agreesWithProposal(action agent.Action, in *Input) bool {
	return action == directionalAction(in.Proposal.Direction)
}

func gexOf(in *Input) float64 {
	if in.Flow == nil {
		return 0
	}
	return in.Flow.GEX
}
