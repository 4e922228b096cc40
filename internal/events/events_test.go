package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helios/internal/domain/agent"
	"helios/internal/domain/decision"
	"helios/internal/domain/emergency"
)

type recorder struct {
	batches     []BatchEvent
	opinions    []OpinionEvent
	decisions   []DecisionEvent
	emergencies []EmergencyEvent
}

func (r *recorder) OnBatchProcessed(_ context.Context, ev BatchEvent) {
	r.batches = append(r.batches, ev)
}

func (r *recorder) OnOpinionRecorded(_ context.Context, ev OpinionEvent) {
	r.opinions = append(r.opinions, ev)
}

func (r *recorder) OnDecisionMade(_ context.Context, ev DecisionEvent) {
	r.decisions = append(r.decisions, ev)
}

func (r *recorder) OnEmergencyChanged(_ context.Context, ev EmergencyEvent) {
	r.emergencies = append(r.emergencies, ev)
}

type panicky struct{ BaseObserver }

func (panicky) OnDecisionMade(context.Context, DecisionEvent) {
	panic("sink exploded")
}

func TestDispatcherFansOutToEveryObserver(t *testing.T) {
	d := NewDispatcher()
	first := &recorder{}
	second := &recorder{}
	d.Register(first)
	d.Register(second)

	ctx := context.Background()
	d.BatchProcessed(ctx, BatchEvent{Received: 10, Accepted: 3})
	d.OpinionRecorded(ctx, agent.Opinion{Agent: agent.NameTechnical, Symbol: "NVDA"})
	d.DecisionMade(ctx, decision.ConsensusDecision{Symbol: "NVDA"})

	for _, r := range []*recorder{first, second} {
		require.Len(t, r.batches, 1)
		require.Len(t, r.opinions, 1)
		require.Len(t, r.decisions, 1)
		assert.Equal(t, 10, r.batches[0].Received)
		assert.False(t, r.batches[0].Timestamp.IsZero())
		assert.Equal(t, "NVDA", r.opinions[0].Opinion.Symbol)
	}
}

func TestDispatcherIsolatesPanickingObserver(t *testing.T) {
	d := NewDispatcher()
	d.Register(panicky{})
	healthy := &recorder{}
	d.Register(healthy)

	d.DecisionMade(context.Background(), decision.ConsensusDecision{Symbol: "TSLA"})

	require.Len(t, healthy.decisions, 1)
	assert.Equal(t, "TSLA", healthy.decisions[0].Decision.Symbol)
}

func TestEmergencyChangedCarriesLevelName(t *testing.T) {
	d := NewDispatcher()
	r := &recorder{}
	d.Register(r)

	d.EmergencyChanged(context.Background(), emergency.State{KillSwitchActive: true})

	require.Len(t, r.emergencies, 1)
	assert.Equal(t, "KILL_SWITCH", r.emergencies[0].Level)
	assert.True(t, r.emergencies[0].State.KillSwitchActive)
}
