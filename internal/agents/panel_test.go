package agents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helios/internal/domain/agent"
	"helios/internal/domain/alert"
	"helios/internal/domain/portfolio"
	"helios/internal/domain/signal"
	"helios/pkg/errors"
)

type stubAgent struct {
	name    string
	opinion *agent.Opinion
	err     error
	panics  bool
}

func (a *stubAgent) Name() string { return a.name }

func (a *stubAgent) Analyze(_ context.Context, in *Input) (*agent.Opinion, error) {
	if a.panics {
		panic("boom")
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.opinion, nil
}

type mockMarket struct {
	flow       *portfolio.FlowSnapshot
	signals    []signal.TradingSignal
	flowErr    error
	signalsErr error
}

func (m *mockMarket) Flow(context.Context, string) (*portfolio.FlowSnapshot, error) {
	if m.flowErr != nil {
		return nil, m.flowErr
	}
	return m.flow, nil
}

func (m *mockMarket) RecentSignals(context.Context, string, int) ([]signal.TradingSignal, error) {
	if m.signalsErr != nil {
		return nil, m.signalsErr
	}
	return m.signals, nil
}

func testProposal() signal.TradeProposal {
	return signal.TradeProposal{
		ID:         uuid.New(),
		Symbol:     "NVDA",
		Direction:  signal.DirectionBullish,
		Side:       alert.SideCall,
		Entry:      5.0,
		Target:     6.5,
		MaxRisk:    2000,
		Horizon:    alert.HorizonSwing,
		Conviction: 72,
		Premium:    250_000,
		DTE:        45,
		Expiry:     time.Now().AddDate(0, 0, 45),
		CreatedAt:  time.Now(),
	}
}

func voteFor(name string) *agent.Opinion {
	return &agent.Opinion{
		ID:         uuid.New(),
		Agent:      name,
		Symbol:     "NVDA",
		Action:     agent.ActionBuyCalls,
		Confidence: 0.8,
		CreatedAt:  time.Now(),
	}
}

func TestAnalyzeCollectsAllOpinionsInPanelOrder(t *testing.T) {
	panel := NewPanelWith(nil,
		&stubAgent{name: "first", opinion: voteFor("first")},
		&stubAgent{name: "second", opinion: voteFor("second")},
		&stubAgent{name: "third", opinion: voteFor("third")},
	)

	opinions := panel.Analyze(context.Background(), testProposal())

	require.Len(t, opinions, 3)
	assert.Equal(t, "first", opinions[0].Agent)
	assert.Equal(t, "second", opinions[1].Agent)
	assert.Equal(t, "third", opinions[2].Agent)
}

func TestAnalyzeSurvivesFailingAndPanickingAgents(t *testing.T) {
	panel := NewPanelWith(nil,
		&stubAgent{name: "healthy_a", opinion: voteFor("healthy_a")},
		&stubAgent{name: "broken", err: errors.ErrUnavailable},
		&stubAgent{name: "crashed", panics: true},
		&stubAgent{name: "healthy_b", opinion: voteFor("healthy_b")},
	)

	opinions := panel.Analyze(context.Background(), testProposal())

	require.Len(t, opinions, 2)
	assert.Equal(t, "healthy_a", opinions[0].Agent)
	assert.Equal(t, "healthy_b", opinions[1].Agent)
}

func TestAnalyzeOmitsAbstentions(t *testing.T) {
	panel := NewPanelWith(nil,
		&stubAgent{name: "voter", opinion: voteFor("voter")},
		&stubAgent{name: "abstainer"}, // nil opinion, nil error
	)

	opinions := panel.Analyze(context.Background(), testProposal())

	require.Len(t, opinions, 1)
	assert.Equal(t, "voter", opinions[0].Agent)
}

func TestAnalyzeDegradesOnMarketDataFailure(t *testing.T) {
	market := &mockMarket{
		flowErr:    errors.ErrUnavailable,
		signalsErr: errors.ErrUnavailable,
	}

	var seen *Input
	capture := agentFunc(func(_ context.Context, in *Input) (*agent.Opinion, error) {
		seen = in
		return nil, nil
	})
	panel := NewPanelWith(market, capture, &stubAgent{name: "voter", opinion: voteFor("voter")})

	opinions := panel.Analyze(context.Background(), testProposal())

	require.Len(t, opinions, 1)
	require.NotNil(t, seen)
	assert.Nil(t, seen.Flow)
	assert.Nil(t, seen.Signals)
}

type agentFunc func(ctx context.Context, in *Input) (*agent.Opinion, error)

func (agentFunc) Name() string { return "func" }

func (f agentFunc) Analyze(ctx context.Context, in *Input) (*agent.Opinion, error) {
	return f(ctx, in)
}

func TestFivePanelAgentsCoverEveryVoterName(t *testing.T) {
	panel := NewPanel(&mockMarket{}, nil, nil)

	names := make([]string, 0, len(panel.agents))
	for _, ag := range panel.agents {
		names = append(names, ag.Name())
	}
	assert.Equal(t, agent.Names(), names)
}

func TestRiskAgentFlagsShortDatedIlliquid(t *testing.T) {
	risky := testProposal()
	risky.DTE = 5
	risky.Expiry = time.Now().AddDate(0, 0, 5)

	op, err := NewRiskAgent().Analyze(context.Background(), &Input{Proposal: risky})

	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Greater(t, op.Risk.RiskScore, 5.0)
	assert.True(t, op.Risk.RiskScore <= 10)
}

func TestOpinionBoundsAlwaysHold(t *testing.T) {
	op := newOpinion("test", &Input{Proposal: testProposal()}, agent.ActionBuyCalls, 1.7, "over-confident", 14)

	assert.Equal(t, 1.0, op.Confidence)
	assert.Equal(t, 10.0, op.Risk.RiskScore)
	assert.InDelta(t, 10_000, op.Risk.PositionSize, 0.01) // 2000 / 0.20 stop
	assert.GreaterOrEqual(t, op.Risk.SuccessProbability, 0.05)
	assert.LessOrEqual(t, op.Risk.SuccessProbability, 0.95)
}
