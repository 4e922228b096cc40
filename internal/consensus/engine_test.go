package consensus

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helios/internal/domain/agent"
	"helios/internal/domain/alert"
	"helios/internal/domain/signal"
)

func equalWeights(t *testing.T) *WeightTable {
	t.Helper()
	table, err := NewWeightTable(map[string]float64{
		agent.NameMarketIntel: 0.2,
		agent.NameTechnical:   0.2,
		agent.NameSentiment:   0.2,
		agent.NameExecution:   0.2,
		agent.NameRisk:        0.2,
	})
	require.NoError(t, err)
	return table
}

func opinion(name string, action agent.Action, confidence float64) agent.Opinion {
	return agent.Opinion{
		ID:         uuid.New(),
		Agent:      name,
		Symbol:     "NVDA",
		Action:     action,
		Confidence: confidence,
		Risk: agent.RiskAssessment{
			RiskScore:    5,
			PositionSize: 10_000,
		},
		CreatedAt: time.Now(),
	}
}

func TestEvaluateSplitPanelHoldsWithApproval(t *testing.T) {
	engine := NewEngine(equalWeights(t))

	opinions := []agent.Opinion{
		opinion(agent.NameMarketIntel, agent.ActionHold, 0.9),
		opinion(agent.NameTechnical, agent.ActionHold, 0.9),
		opinion(agent.NameExecution, agent.ActionHold, 0.9),
		opinion(agent.NameSentiment, agent.ActionBuyCalls, 0.8),
		opinion(agent.NameRisk, agent.ActionBuyPuts, 0.8),
	}

	res, ok := engine.Evaluate(opinions)
	require.True(t, ok)

	assert.Equal(t, agent.ActionHold, res.Action)
	assert.True(t, res.HumanApprovalRequired)
	assert.InDelta(t, 0.54, res.Score, 1e-9)

	// Three distinct recommendations trip the disagreement trigger on
	// top of the low score
	assert.Len(t, res.ApprovalReasons, 2)
}

func TestEvaluateNoOpinionsProducesNoDecision(t *testing.T) {
	engine := NewEngine(equalWeights(t))

	res, ok := engine.Evaluate(nil)
	assert.False(t, ok)
	assert.Equal(t, agent.ActionHold, res.Action)
}

func TestEvaluateNormalizesOverRespondingAgentsOnly(t *testing.T) {
	engine := NewEngine(equalWeights(t))

	// Only two agents respond; their agreement should not be diluted
	// by the three abstentions
	opinions := []agent.Opinion{
		opinion(agent.NameMarketIntel, agent.ActionBuyCalls, 0.9),
		opinion(agent.NameTechnical, agent.ActionBuyCalls, 0.95),
	}

	res, ok := engine.Evaluate(opinions)
	require.True(t, ok)

	assert.Equal(t, agent.ActionBuyCalls, res.Action)
	assert.InDelta(t, 0.925, res.Score, 1e-9)
	assert.InDelta(t, 0.4, res.RespondingWeight, 1e-9)
	assert.False(t, res.HumanApprovalRequired)
}

func TestEvaluateScoreAlwaysInUnitInterval(t *testing.T) {
	engine := NewEngine(equalWeights(t))

	cases := [][]agent.Opinion{
		{opinion(agent.NameRisk, agent.ActionHold, 0)},
		{opinion(agent.NameRisk, agent.ActionHold, 1)},
		{
			opinion(agent.NameMarketIntel, agent.ActionBuyCalls, 1),
			opinion(agent.NameTechnical, agent.ActionBuyPuts, 1),
			opinion(agent.NameSentiment, agent.ActionSellCalls, 1),
			opinion(agent.NameExecution, agent.ActionSellPuts, 1),
			opinion(agent.NameRisk, agent.ActionClose, 1),
		},
		{
			opinion(agent.NameMarketIntel, agent.ActionBuyCalls, 0.01),
			opinion(agent.NameRisk, agent.ActionHold, 0.99),
		},
	}

	for _, opinions := range cases {
		res, ok := engine.Evaluate(opinions)
		require.True(t, ok)
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)

		if res.Score < 0.6 {
			assert.True(t, res.HumanApprovalRequired)
		}
	}
}

func TestApprovalTriggersAreIndependent(t *testing.T) {
	base := func() []agent.Opinion {
		return []agent.Opinion{
			opinion(agent.NameMarketIntel, agent.ActionBuyCalls, 0.9),
			opinion(agent.NameTechnical, agent.ActionBuyCalls, 0.95),
		}
	}

	t.Run("high opinion risk", func(t *testing.T) {
		opinions := base()
		opinions[0].Risk.RiskScore = 8.5

		res, ok := NewEngine(equalWeights(t)).Evaluate(opinions)
		require.True(t, ok)
		assert.True(t, res.HumanApprovalRequired)
		assert.Len(t, res.ApprovalReasons, 1)
	})

	t.Run("oversized opinion", func(t *testing.T) {
		opinions := base()
		opinions[1].Risk.PositionSize = 150_000

		res, ok := NewEngine(equalWeights(t)).Evaluate(opinions)
		require.True(t, ok)
		assert.True(t, res.HumanApprovalRequired)
		assert.Len(t, res.ApprovalReasons, 1)
	})

	t.Run("no trigger", func(t *testing.T) {
		res, ok := NewEngine(equalWeights(t)).Evaluate(base())
		require.True(t, ok)
		assert.False(t, res.HumanApprovalRequired)
		assert.Empty(t, res.ApprovalReasons)
	})
}

func TestEvaluateIgnoresUnweightedAgents(t *testing.T) {
	engine := NewEngine(equalWeights(t))

	opinions := []agent.Opinion{
		opinion(agent.NameMarketIntel, agent.ActionBuyCalls, 0.9),
		opinion("rogue", agent.ActionBuyPuts, 1.0),
	}

	res, ok := engine.Evaluate(opinions)
	require.True(t, ok)
	assert.Equal(t, agent.ActionBuyCalls, res.Action)
	assert.InDelta(t, 0.2, res.RespondingWeight, 1e-9)
}

func TestDecideCarriesRiskVerdictAndExecution(t *testing.T) {
	engine := NewEngine(equalWeights(t))

	proposal := signal.TradeProposal{
		Symbol:  "NVDA",
		Entry:   10,
		Target:  13,
		MaxRisk: 2000,
		Horizon: alert.HorizonSwing,
		DTE:     45,
	}
	opinions := []agent.Opinion{
		opinion(agent.NameMarketIntel, agent.ActionBuyCalls, 0.9),
		opinion(agent.NameTechnical, agent.ActionBuyCalls, 0.95),
	}
	res, ok := engine.Evaluate(opinions)
	require.True(t, ok)

	dec := engine.Decide(proposal, opinions, res, false, "portfolio heat 0.35 exceeds limit 0.30")

	assert.Equal(t, "NVDA", dec.Symbol)
	assert.Equal(t, agent.ActionBuyCalls, dec.Action)
	assert.False(t, dec.RiskApproved)
	assert.NotEmpty(t, dec.RiskReason)
	assert.Len(t, dec.Opinions, 2)

	assert.InDelta(t, 0.20, dec.Execution.StopLossPct, 1e-9)
	assert.InDelta(t, 0.30, dec.Execution.ProfitTargetPct, 1e-9)
	assert.InDelta(t, 10_000, dec.Execution.MaxPositionSize, 1e-9)
	assert.Equal(t, "weeks", string(dec.Execution.HoldingPeriod))
}
