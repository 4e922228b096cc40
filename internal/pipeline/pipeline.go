package pipeline

import (
	"context"
	"sync"

	"helios/internal/agents"
	"helios/internal/consensus"
	"helios/internal/domain/agent"
	"helios/internal/domain/alert"
	"helios/internal/domain/decision"
	"helios/internal/domain/signal"
	"helios/internal/events"
	"helios/internal/filter"
	"helios/internal/riskgate"
	"helios/internal/synth"
	"helios/pkg/errors"
	"helios/pkg/logger"

	"github.com/google/uuid"
)

const (
	// historyLimit bounds the in-memory decision trail
	historyLimit = 256

	// learnBatchSize is how many closed trades accumulate before the
	// agent weights are re-fit
	learnBatchSize = 20
)

// Pipeline carries alerts end to end: filter, synthesis, agent panel,
// consensus, risk gate. One RunCycle handles one source poll.
type Pipeline struct {
	source alert.Source
	filter *filter.Service
	synth  *synth.Synthesizer
	panel  *agents.Panel
	engine *consensus.Engine
	gate   *riskgate.Gate
	events *events.Dispatcher

	mu       sync.RWMutex
	history  []*decision.ConsensusDecision
	outcomes []decision.TradeOutcome

	log *logger.Logger
}

// New assembles the pipeline
func New(
	source alert.Source,
	flt *filter.Service,
	syn *synth.Synthesizer,
	panel *agents.Panel,
	engine *consensus.Engine,
	gate *riskgate.Gate,
	dispatcher *events.Dispatcher,
) *Pipeline {
	return &Pipeline{
		source: source,
		filter: flt,
		synth:  syn,
		panel:  panel,
		engine: engine,
		gate:   gate,
		events: dispatcher,
		log:    logger.Get().With("component", "pipeline"),
	}
}

// RunCycle polls the alert source and carries every accepted alert
// through to a recorded decision
func (p *Pipeline) RunCycle(ctx context.Context) error {
	raw, err := p.source.Poll(ctx)
	if err != nil {
		return errors.Wrap(err, "poll alert source")
	}

	batch := p.filter.Filter(raw)

	proposals := 0
	for _, pa := range batch.Alerts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.processAlert(ctx, pa) {
			proposals++
		}
	}

	p.events.BatchProcessed(ctx, events.BatchEvent{
		Received:  batch.Received,
		Accepted:  batch.Accepted,
		Malformed: batch.Malformed,
		Rejected:  batch.Rejected,
		Proposals: proposals,
	})
	return nil
}

// processAlert runs one alert through the decision chain. It returns
// whether a decision was recorded.
func (p *Pipeline) processAlert(ctx context.Context, pa alert.ProcessedAlert) bool {
	proposal := p.synth.Synthesize(pa)

	opinions := p.panel.Analyze(ctx, proposal)
	for _, op := range opinions {
		p.events.OpinionRecorded(ctx, op)
	}

	res, ok := p.engine.Evaluate(opinions)
	if !ok {
		p.log.Warnw("Panel fully abstained, no decision", "symbol", proposal.Symbol)
		return false
	}

	riskApproved := false
	riskReason := "hold recommendation, nothing to execute"
	if res.Action != agent.ActionHold {
		assessment := p.gate.Assess(ctx, proposal, p.quantity(proposal))
		riskApproved = assessment.Approved
		riskReason = assessment.Reason
		for _, w := range assessment.Warnings {
			p.log.Warnw("Risk warning", "symbol", proposal.Symbol, "warning", w)
		}
	}

	dec := p.engine.Decide(proposal, opinions, res, riskApproved, riskReason)
	p.remember(dec)
	p.events.DecisionMade(ctx, *dec)
	return true
}

// quantity sizes the order so a stop-out loses at most the proposal's
// risk budget
func (p *Pipeline) quantity(proposal signal.TradeProposal) int {
	stop := 0.20
	if proposal.Horizon == alert.HorizonLeap {
		stop = 0.30
	}
	perContract := proposal.Entry * 100 * stop
	if perContract <= 0 {
		return 1
	}
	qty := int(proposal.MaxRisk / perContract)
	if qty < 1 {
		qty = 1
	}
	return qty
}

// RecordOutcome files a closed trade and re-fits the agent weights
// once enough outcomes accumulate
func (p *Pipeline) RecordOutcome(outcome decision.TradeOutcome) error {
	p.mu.Lock()
	p.outcomes = append(p.outcomes, outcome)
	if len(p.outcomes) < learnBatchSize {
		p.mu.Unlock()
		return nil
	}
	batch := p.outcomes
	p.outcomes = nil
	p.mu.Unlock()

	if err := p.engine.Weights().Update(batch); err != nil {
		return errors.Wrap(err, "update agent weights")
	}

	p.log.Infow("Agent weights re-fit",
		"outcomes", len(batch),
		"weights", p.engine.Weights().Snapshot(),
	)
	return nil
}

func (p *Pipeline) remember(dec *decision.ConsensusDecision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, dec)
	if len(p.history) > historyLimit {
		p.history = p.history[len(p.history)-historyLimit:]
	}
}

// History returns up to limit decisions, newest first
func (p *Pipeline) History(limit int) []*decision.ConsensusDecision {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := len(p.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*decision.ConsensusDecision, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, p.history[i])
	}
	return out
}

// Decision returns a recorded decision by ID
func (p *Pipeline) Decision(id uuid.UUID) (*decision.ConsensusDecision, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := len(p.history) - 1; i >= 0; i-- {
		if p.history[i].ID == id {
			return p.history[i], true
		}
	}
	return nil, false
}
