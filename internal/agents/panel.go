package agents

import (
	"context"
	"sync"

	"helios/internal/domain/agent"
	"helios/internal/domain/portfolio"
	"helios/internal/domain/sentiment"
	"helios/internal/domain/signal"
	"helios/internal/metrics"
	"helios/pkg/logger"
)

// recentSignalLimit bounds the signal history fetched per proposal
const recentSignalLimit = 50

// Panel fans a proposal out to every agent concurrently and collects the
// surviving opinions. One failing or panicking agent never aborts the
// cycle for the others.
type Panel struct {
	agents []Agent
	market portfolio.MarketData
	log    *logger.Logger
}

// NewPanel wires the standard five-agent panel
func NewPanel(market portfolio.MarketData, feed sentiment.Feed, scorer sentiment.Scorer) *Panel {
	return NewPanelWith(market,
		NewMarketIntelAgent(),
		NewTechnicalAgent(),
		NewSentimentAgent(feed, scorer),
		NewExecutionAgent(),
		NewRiskAgent(),
	)
}

// NewPanelWith builds a panel over an explicit agent set
func NewPanelWith(market portfolio.MarketData, agents ...Agent) *Panel {
	return &Panel{
		agents: agents,
		market: market,
		log:    logger.Get().With("component", "agent_panel"),
	}
}

// Analyze runs every agent against the proposal and returns their
// opinions in panel order. Abstentions and failures are omitted.
func (p *Panel) Analyze(ctx context.Context, proposal signal.TradeProposal) []agent.Opinion {
	in := p.buildInput(ctx, proposal)

	results := make([]*agent.Opinion, len(p.agents))

	var wg sync.WaitGroup
	for i, ag := range p.agents {
		wg.Add(1)
		go func(i int, ag Agent) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.log.Errorw("Agent panicked during analysis",
						"agent", ag.Name(),
						"symbol", proposal.Symbol,
						"panic", r,
					)
					metrics.AgentFailures.WithLabelValues(ag.Name()).Inc()
				}
			}()

			op, err := ag.Analyze(ctx, in)
			if err != nil {
				p.log.Errorw("Agent analysis failed",
					"agent", ag.Name(),
					"symbol", proposal.Symbol,
					"error", err,
				)
				metrics.AgentFailures.WithLabelValues(ag.Name()).Inc()
				return
			}
			results[i] = op
		}(i, ag)
	}
	wg.Wait()

	opinions := make([]agent.Opinion, 0, len(results))
	for _, op := range results {
		if op == nil {
			continue
		}
		metrics.OpinionsTotal.WithLabelValues(op.Agent, string(op.Action)).Inc()
		opinions = append(opinions, *op)
	}

	p.log.Debugw("Panel analysis complete",
		"symbol", proposal.Symbol,
		"opinions", len(opinions),
		"abstained_or_failed", len(p.agents)-len(opinions),
	)

	return opinions
}

// buildInput assembles the shared analysis context. Collaborator
// failures degrade into missing data, never into a failed cycle.
func (p *Panel) buildInput(ctx context.Context, proposal signal.TradeProposal) *Input {
	in := &Input{Proposal: proposal}
	if p.market == nil {
		return in
	}

	flow, err := p.market.Flow(ctx, proposal.Symbol)
	if err != nil {
		p.log.Warnw("Flow snapshot unavailable", "symbol", proposal.Symbol, "error", err)
	} else {
		in.Flow = flow
	}

	signals, err := p.market.RecentSignals(ctx, proposal.Symbol, recentSignalLimit)
	if err != nil {
		p.log.Warnw("Recent signals unavailable", "symbol", proposal.Symbol, "error", err)
	} else {
		in.Signals = signals
	}

	return in
}
