package events

import (
	"context"
	"sync"
	"time"

	"helios/internal/domain/agent"
	"helios/internal/domain/decision"
	"helios/internal/domain/emergency"
	"helios/pkg/logger"
)

// BatchEvent summarizes one intake cycle of the alert filter
type BatchEvent struct {
	Received  int            `json:"received"`
	Accepted  int            `json:"accepted"`
	Malformed int            `json:"malformed"`
	Rejected  map[string]int `json:"rejected"`
	Proposals int            `json:"proposals"`
	Timestamp time.Time      `json:"timestamp"`
}

// OpinionEvent carries a single agent opinion
type OpinionEvent struct {
	Opinion   agent.Opinion `json:"opinion"`
	Timestamp time.Time     `json:"timestamp"`
}

// DecisionEvent carries a finalized consensus decision
type DecisionEvent struct {
	Decision  decision.ConsensusDecision `json:"decision"`
	Timestamp time.Time                  `json:"timestamp"`
}

// EmergencyEvent carries a published emergency state change
type EmergencyEvent struct {
	State     emergency.State `json:"state"`
	Level     string          `json:"level"`
	Timestamp time.Time       `json:"timestamp"`
}

// Observer receives pipeline events. Implementations must not block;
// slow sinks should buffer internally.
type Observer interface {
	OnBatchProcessed(ctx context.Context, ev BatchEvent)
	OnOpinionRecorded(ctx context.Context, ev OpinionEvent)
	OnDecisionMade(ctx context.Context, ev DecisionEvent)
	OnEmergencyChanged(ctx context.Context, ev EmergencyEvent)
}

// BaseObserver provides no-op defaults so sinks implement only what
// they care about
type BaseObserver struct{}

func (BaseObserver) OnBatchProcessed(context.Context, BatchEvent)       {}
func (BaseObserver) OnOpinionRecorded(context.Context, OpinionEvent)    {}
func (BaseObserver) OnDecisionMade(context.Context, DecisionEvent)      {}
func (BaseObserver) OnEmergencyChanged(context.Context, EmergencyEvent) {}

// Dispatcher fans events out to registered observers. A panicking
// observer is isolated; the rest still receive the event.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []Observer
	log       *logger.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{log: logger.Get().With("component", "event_dispatcher")}
}

// Register adds an observer
func (d *Dispatcher) Register(o Observer) {
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
}

// BatchProcessed publishes an intake cycle summary
func (d *Dispatcher) BatchProcessed(ctx context.Context, ev BatchEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	d.each(func(o Observer) { o.OnBatchProcessed(ctx, ev) })
}

// OpinionRecorded publishes one agent opinion
func (d *Dispatcher) OpinionRecorded(ctx context.Context, op agent.Opinion) {
	ev := OpinionEvent{Opinion: op, Timestamp: time.Now()}
	d.each(func(o Observer) { o.OnOpinionRecorded(ctx, ev) })
}

// DecisionMade publishes a finalized decision
func (d *Dispatcher) DecisionMade(ctx context.Context, dec decision.ConsensusDecision) {
	ev := DecisionEvent{Decision: dec, Timestamp: time.Now()}
	d.each(func(o Observer) { o.OnDecisionMade(ctx, ev) })
}

// EmergencyChanged publishes an emergency state change
func (d *Dispatcher) EmergencyChanged(ctx context.Context, state emergency.State) {
	ev := EmergencyEvent{
		State:     state,
		Level:     state.Level().String(),
		Timestamp: time.Now(),
	}
	d.each(func(o Observer) { o.OnEmergencyChanged(ctx, ev) })
}

func (d *Dispatcher) each(fn func(Observer)) {
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.log.Errorw("Observer panicked", "panic", r)
				}
			}()
			fn(o)
		}()
	}
}
