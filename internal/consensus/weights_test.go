package consensus

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helios/internal/domain/agent"
	"helios/internal/domain/decision"
)

func outcome(profitable bool, agents ...string) decision.TradeOutcome {
	opinions := make([]agent.Opinion, 0, len(agents))
	for _, name := range agents {
		opinions = append(opinions, agent.Opinion{
			ID:         uuid.New(),
			Agent:      name,
			Symbol:     "TSLA",
			Action:     agent.ActionBuyCalls,
			Confidence: 0.8,
			CreatedAt:  time.Now(),
		})
	}
	return decision.TradeOutcome{
		DecisionID: uuid.New(),
		Symbol:     "TSLA",
		Profitable: profitable,
		Opinions:   opinions,
		ClosedAt:   time.Now(),
	}
}

func TestNewWeightTableRejectsBadInput(t *testing.T) {
	_, err := NewWeightTable(nil)
	assert.Error(t, err)

	_, err = NewWeightTable(map[string]float64{"a": 0.5, "b": 0.6})
	assert.Error(t, err)

	_, err = NewWeightTable(map[string]float64{"a": -0.2, "b": 1.2})
	assert.Error(t, err)
}

func TestUpdateRenormalizesAndRanksByHitRate(t *testing.T) {
	table, err := NewWeightTable(map[string]float64{"a": 0.5, "b": 0.5})
	require.NoError(t, err)

	// a participates in winners and losers, b only in losers
	outcomes := []decision.TradeOutcome{
		outcome(true, "a"),
		outcome(true, "a"),
		outcome(false, "a", "b"),
		outcome(false, "b"),
	}
	require.NoError(t, table.Update(outcomes))

	weights := table.Snapshot()
	sum := weights["a"] + weights["b"]
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, weights["a"], weights["b"])
	assert.Zero(t, weights["b"])
}

func TestUpdateKeepsWeightOfAbsentAgents(t *testing.T) {
	table, err := NewWeightTable(map[string]float64{"a": 0.4, "b": 0.6})
	require.NoError(t, err)

	// Only a appears in the batch, with a perfect record: raw weights
	// become a=1.0, b=0.6 before renormalization
	require.NoError(t, table.Update([]decision.TradeOutcome{
		outcome(true, "a"),
		outcome(true, "a"),
	}))

	weights := table.Snapshot()
	assert.InDelta(t, 1.0/1.6, weights["a"], 1e-9)
	assert.InDelta(t, 0.6/1.6, weights["b"], 1e-9)
}

func TestUpdateIgnoresUntrackedAgents(t *testing.T) {
	table, err := NewWeightTable(map[string]float64{"a": 0.5, "b": 0.5})
	require.NoError(t, err)

	// The intruder's perfect record must neither join the table nor
	// dilute the configured agents
	require.NoError(t, table.Update([]decision.TradeOutcome{
		outcome(true, "a", "intruder"),
	}))

	weights := table.Snapshot()
	_, present := weights["intruder"]
	assert.False(t, present)

	// Raw weights after the batch are a=1.0, b=0.5
	assert.InDelta(t, 1.0/1.5, weights["a"], 1e-9)
	assert.InDelta(t, 0.5/1.5, weights["b"], 1e-9)
}

func TestUpdateAllLosersFallsBackToEqualWeights(t *testing.T) {
	table, err := NewWeightTable(map[string]float64{"a": 0.7, "b": 0.3})
	require.NoError(t, err)

	require.NoError(t, table.Update([]decision.TradeOutcome{
		outcome(false, "a", "b"),
	}))

	weights := table.Snapshot()
	assert.InDelta(t, 0.5, weights["a"], 1e-9)
	assert.InDelta(t, 0.5, weights["b"], 1e-9)
}

func TestUpdateEmptyBatchIsNoOp(t *testing.T) {
	table, err := NewWeightTable(map[string]float64{"a": 0.7, "b": 0.3})
	require.NoError(t, err)

	require.NoError(t, table.Update(nil))

	weights := table.Snapshot()
	assert.InDelta(t, 0.7, weights["a"], 1e-9)
	assert.InDelta(t, 0.3, weights["b"], 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	table, err := NewWeightTable(map[string]float64{"a": 0.5, "b": 0.5})
	require.NoError(t, err)

	snap := table.Snapshot()
	snap["a"] = 99

	assert.InDelta(t, 0.5, table.Snapshot()["a"], 1e-9)
}
