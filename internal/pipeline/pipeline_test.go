package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helios/internal/agents"
	"helios/internal/consensus"
	"helios/internal/domain/agent"
	"helios/internal/domain/alert"
	"helios/internal/domain/decision"
	"helios/internal/domain/emergency"
	"helios/internal/domain/portfolio"
	"helios/internal/events"
	"helios/internal/filter"
	"helios/internal/riskgate"
	"helios/internal/synth"
)

type stubSource struct {
	alerts []alert.RawAlert
	err    error
}

func (s *stubSource) Poll(context.Context) ([]alert.RawAlert, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.alerts
	s.alerts = nil
	return out, nil
}

type stubBroker struct{}

func (stubBroker) Account(context.Context) (*portfolio.AccountSnapshot, error) {
	return &portfolio.AccountSnapshot{
		RealizedPnL:    decimal.NewFromInt(200),
		UnrealizedPnL:  decimal.Zero,
		NetLiquidation: decimal.NewFromInt(100_000),
		Timestamp:      time.Now(),
	}, nil
}

func (stubBroker) OpenPositions(context.Context) ([]portfolio.Position, error) {
	return nil, nil
}

func (stubBroker) CancelAllOrders(context.Context) (int, error) { return 0, nil }

type calmState struct{}

func (calmState) Snapshot() emergency.State {
	return emergency.State{UpdatedAt: time.Now()}
}

type fixedAgent struct {
	name   string
	action agent.Action
}

func (a fixedAgent) Name() string { return a.name }

func (a fixedAgent) Analyze(_ context.Context, in *agents.Input) (*agent.Opinion, error) {
	return &agent.Opinion{
		ID:         uuid.New(),
		Agent:      a.name,
		Symbol:     in.Proposal.Symbol,
		Action:     a.action,
		Confidence: 0.8,
		Risk:       agent.RiskAssessment{RiskScore: 4, PositionSize: 10_000},
		CreatedAt:  time.Now(),
	}, nil
}

type sink struct {
	events.BaseObserver
	batches   []events.BatchEvent
	decisions []events.DecisionEvent
}

func (s *sink) OnBatchProcessed(_ context.Context, ev events.BatchEvent) {
	s.batches = append(s.batches, ev)
}

func (s *sink) OnDecisionMade(_ context.Context, ev events.DecisionEvent) {
	s.decisions = append(s.decisions, ev)
}

func rawAlert(premium float64) alert.RawAlert {
	return alert.RawAlert{
		Ticker:          "NVDA",
		Side:            alert.SideCall,
		Premium:         premium,
		Size:            1500,
		OpenInterest:    400,
		AskSidePct:      0.85,
		DTE:             45,
		Strike:          150,
		UnderlyingPrice: 140,
		Timestamp:       time.Now(),
	}
}

func newTestPipeline(t *testing.T, source *stubSource, out *sink, actions ...agent.Action) *Pipeline {
	t.Helper()

	weights := map[string]float64{}
	panelAgents := make([]agents.Agent, 0, len(actions))
	names := []string{"alpha", "beta", "gamma"}
	for i, action := range actions {
		weights[names[i]] = 1.0 / float64(len(actions))
		panelAgents = append(panelAgents, fixedAgent{name: names[i], action: action})
	}

	table, err := consensus.NewWeightTable(weights)
	require.NoError(t, err)

	gate, err := riskgate.New(riskgate.Limits{
		MaxPositionSize:  25_000,
		MaxDailyLoss:     3_000,
		MaxPortfolioHeat: 0.30,
		MaxDrawdownPct:   0.10,
		MaxContracts:     50,
	}, stubBroker{}, calmState{}, 10*time.Second)
	require.NoError(t, err)

	dispatcher := events.NewDispatcher()
	dispatcher.Register(out)

	return New(
		source,
		filter.New(filter.DefaultParams()),
		synth.New(2000),
		agents.NewPanelWith(nil, panelAgents...),
		consensus.NewEngine(table),
		gate,
		dispatcher,
	)
}

func TestRunCycleRecordsUnanimousBuyDecision(t *testing.T) {
	source := &stubSource{alerts: []alert.RawAlert{rawAlert(250_000)}}
	out := &sink{}
	p := newTestPipeline(t, source, out,
		agent.ActionBuyCalls, agent.ActionBuyCalls, agent.ActionBuyCalls)

	require.NoError(t, p.RunCycle(context.Background()))

	require.Len(t, out.decisions, 1)
	dec := out.decisions[0].Decision
	assert.Equal(t, "NVDA", dec.Symbol)
	assert.Equal(t, agent.ActionBuyCalls, dec.Action)
	assert.True(t, dec.RiskApproved, "reason: %s", dec.RiskReason)
	assert.Len(t, dec.Opinions, 3)

	require.Len(t, out.batches, 1)
	assert.Equal(t, 1, out.batches[0].Received)
	assert.Equal(t, 1, out.batches[0].Accepted)
	assert.Equal(t, 1, out.batches[0].Proposals)

	history := p.History(10)
	require.Len(t, history, 1)
	assert.Equal(t, dec.ID, history[0].ID)

	got, ok := p.Decision(dec.ID)
	require.True(t, ok)
	assert.Equal(t, "NVDA", got.Symbol)
}

func TestRunCycleHoldConsensusSkipsRiskGate(t *testing.T) {
	source := &stubSource{alerts: []alert.RawAlert{rawAlert(250_000)}}
	out := &sink{}
	p := newTestPipeline(t, source, out,
		agent.ActionHold, agent.ActionHold, agent.ActionHold)

	require.NoError(t, p.RunCycle(context.Background()))

	require.Len(t, out.decisions, 1)
	dec := out.decisions[0].Decision
	assert.Equal(t, agent.ActionHold, dec.Action)
	assert.False(t, dec.RiskApproved)
	assert.Equal(t, "hold recommendation, nothing to execute", dec.RiskReason)
}

func TestRunCycleDropsSubthresholdAlerts(t *testing.T) {
	source := &stubSource{alerts: []alert.RawAlert{rawAlert(40_000)}}
	out := &sink{}
	p := newTestPipeline(t, source, out,
		agent.ActionBuyCalls, agent.ActionBuyCalls, agent.ActionBuyCalls)

	require.NoError(t, p.RunCycle(context.Background()))

	assert.Empty(t, out.decisions)
	require.Len(t, out.batches, 1)
	assert.Equal(t, 1, out.batches[0].Received)
	assert.Equal(t, 0, out.batches[0].Accepted)
	assert.Equal(t, 1, out.batches[0].Rejected[filter.RejectPremiumFloor])
}

func TestRunCycleQuietMarketPublishesEmptyBatch(t *testing.T) {
	out := &sink{}
	p := newTestPipeline(t, &stubSource{}, out, agent.ActionBuyCalls)

	require.NoError(t, p.RunCycle(context.Background()))

	require.Len(t, out.batches, 1)
	assert.Zero(t, out.batches[0].Received)
	assert.Empty(t, out.decisions)
}

func TestRecordOutcomeRefitsWeightsAfterBatch(t *testing.T) {
	out := &sink{}
	p := newTestPipeline(t, &stubSource{}, out,
		agent.ActionBuyCalls, agent.ActionBuyCalls)

	outcome := func(profitable bool, name string) decision.TradeOutcome {
		return decision.TradeOutcome{
			DecisionID: uuid.New(),
			Symbol:     "NVDA",
			Profitable: profitable,
			Opinions:   []agent.Opinion{{Agent: name, Action: agent.ActionBuyCalls}},
			ClosedAt:   time.Now(),
		}
	}

	// Not enough outcomes yet: weights stay at their initial split
	for i := 0; i < 19; i++ {
		require.NoError(t, p.RecordOutcome(outcome(i%2 == 0, "alpha")))
	}
	assert.InDelta(t, 0.5, p.engine.Weights().Snapshot()["alpha"], 0.001)

	// The twentieth outcome triggers the re-fit; alpha out-hits beta
	require.NoError(t, p.RecordOutcome(outcome(false, "beta")))

	weights := p.engine.Weights().Snapshot()
	assert.Greater(t, weights["alpha"], weights["beta"])
}
