package riskgate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"helios/internal/domain/emergency"
	"helios/internal/domain/portfolio"
	"helios/internal/domain/signal"
	"helios/internal/metrics"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

// contractMultiplier converts option contracts to notional exposure
const contractMultiplier = 100

// Limits are the operator-tunable portfolio risk ceilings
type Limits struct {
	MaxPositionSize  float64 // USD notional per trade
	MaxDailyLoss     float64 // USD, positive
	MaxPortfolioHeat float64 // exposure / equity, 0..1
	MaxDrawdownPct   float64 // 0..1
	MaxContracts     int
}

// Validate rejects unusable limits at the configuration boundary
func (l Limits) Validate() error {
	if l.MaxPositionSize <= 0 {
		return errors.NewValidationError("max_position_size", "must be > 0", l.MaxPositionSize)
	}
	if l.MaxDailyLoss <= 0 {
		return errors.NewValidationError("max_daily_loss", "must be > 0", l.MaxDailyLoss)
	}
	if l.MaxPortfolioHeat <= 0 || l.MaxPortfolioHeat > 1 {
		return errors.NewValidationError("max_portfolio_heat", "must be in (0,1]", l.MaxPortfolioHeat)
	}
	if l.MaxDrawdownPct <= 0 || l.MaxDrawdownPct > 1 {
		return errors.NewValidationError("max_drawdown_pct", "must be in (0,1]", l.MaxDrawdownPct)
	}
	if l.MaxContracts <= 0 {
		return errors.NewValidationError("max_contracts", "must be > 0", l.MaxContracts)
	}
	return nil
}

// Assessment is the gate's verdict on one candidate trade
type Assessment struct {
	Approved bool
	Reason   string

	// RiskScore ranks approved trades, 0..100, lower is better
	RiskScore float64

	Warnings []string
}

// StateReader exposes the published emergency state to the gate
type StateReader interface {
	Snapshot() emergency.State
}

// Gate validates candidate trades against portfolio-level limits.
// It is independently computable outside the agent panel: everything it
// needs comes from the brokerage snapshot and the emergency state.
type Gate struct {
	mu     sync.RWMutex
	limits Limits

	broker    portfolio.Broker
	emergency StateReader

	// maxStateAge rejects trades decided against an emergency snapshot
	// older than one monitoring interval, with a quarter-interval
	// allowance for ticker scheduling drift
	maxStateAge time.Duration

	now func() time.Time
	log *logger.Logger
}

// New creates a risk gate
func New(limits Limits, broker portfolio.Broker, state StateReader, monitorInterval time.Duration) (*Gate, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	return &Gate{
		limits:      limits,
		broker:      broker,
		emergency:   state,
		maxStateAge: monitorInterval + monitorInterval/4,
		now:         time.Now,
		log:         logger.Get().With("component", "risk_gate"),
	}, nil
}

// UpdateLimits swaps in new limits after validation
func (g *Gate) UpdateLimits(limits Limits) error {
	if err := limits.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	g.limits = limits
	g.mu.Unlock()

	g.log.Infow("Risk limits updated",
		"max_position_size", limits.MaxPositionSize,
		"max_daily_loss", limits.MaxDailyLoss,
		"max_portfolio_heat", limits.MaxPortfolioHeat,
	)
	return nil
}

// Limits returns the current limits
func (g *Gate) Limits() Limits {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits
}

// Assess validates a candidate trade. The first failing check becomes
// the primary reason; warnings from every check accumulate regardless.
// Any internal error computing portfolio metrics fails closed.
func (g *Gate) Assess(ctx context.Context, proposal signal.TradeProposal, quantity int) Assessment {
	limits := g.Limits()

	state := g.emergency.Snapshot()

	// Emergency controls come first: nothing is approvable under a
	// stop or kill switch, and a stale snapshot is treated the same way
	if state.HardHalt() {
		return g.reject("emergency", fmt.Sprintf("emergency controls active (%s): %s", state.Level(), state.Reason), nil)
	}
	if state.CircuitBreakerTriggered {
		return g.reject("circuit_breaker", "circuit breaker active, trading paused", nil)
	}
	if state.StaleAfter(g.maxStateAge, g.now()) {
		return g.failClosed("emergency state stale", nil)
	}

	account, err := g.broker.Account(ctx)
	if err != nil {
		g.log.Errorw("Account snapshot failed, failing closed", "error", err)
		return g.failClosed("risk system error", err)
	}
	positions, err := g.broker.OpenPositions(ctx)
	if err != nil {
		g.log.Errorw("Position snapshot failed, failing closed", "error", err)
		return g.failClosed("risk system error", err)
	}

	positionValue := float64(quantity) * proposal.Entry * contractMultiplier

	var warnings []string
	reason, failedCheck := "", ""
	fail := func(check, r string) {
		if reason == "" {
			reason, failedCheck = r, check
		}
	}

	// 1. Position size ceiling
	if positionValue > limits.MaxPositionSize {
		fail("position_size", fmt.Sprintf("position size $%.0f exceeds limit $%.0f", positionValue, limits.MaxPositionSize))
	} else if positionValue > 0.8*limits.MaxPositionSize {
		warnings = append(warnings, "position size above 80% of limit")
	}

	// 2. Projected daily loss
	dailyPnL, _ := account.DailyPnL().Float64()
	currentLoss := math.Max(0, -dailyPnL)
	projectedLoss := currentLoss + proposal.MaxRisk
	if projectedLoss > limits.MaxDailyLoss {
		fail("daily_loss", fmt.Sprintf("projected daily loss $%.0f exceeds limit $%.0f", projectedLoss, limits.MaxDailyLoss))
	} else if projectedLoss > 0.8*limits.MaxDailyLoss {
		warnings = append(warnings, "projected daily loss above 80% of limit")
	}

	// 3. Portfolio heat
	equity, _ := account.NetLiquidation.Float64()
	heat := 0.0
	if equity > 0 {
		exposure := decimal.Zero
		for _, pos := range positions {
			exposure = exposure.Add(pos.Exposure())
		}
		exposureF, _ := exposure.Float64()
		heat = (exposureF + positionValue) / equity

		if heat > limits.MaxPortfolioHeat {
			fail("portfolio_heat", fmt.Sprintf("portfolio heat %.2f exceeds limit %.2f", heat, limits.MaxPortfolioHeat))
		} else if heat > 0.8*limits.MaxPortfolioHeat {
			warnings = append(warnings, "portfolio heat above 80% of limit")
		}
	}

	// 4. Current drawdown
	if equity > 0 && dailyPnL < 0 {
		drawdown := -dailyPnL / equity
		if drawdown >= limits.MaxDrawdownPct {
			fail("drawdown", fmt.Sprintf("drawdown %.1f%% at or above limit %.1f%%", drawdown*100, limits.MaxDrawdownPct*100))
		}
	}

	// 5. Sanity checks
	switch {
	case quantity <= 0:
		fail("sanity", "quantity must be positive")
	case quantity > limits.MaxContracts:
		fail("sanity", fmt.Sprintf("quantity %d exceeds %d contracts", quantity, limits.MaxContracts))
	}
	if proposal.Entry <= 0 {
		fail("sanity", "entry price must be positive")
	}
	if proposal.MaxRisk <= 0 {
		fail("sanity", "max risk must be positive")
	}
	if !proposal.Expiry.After(g.now()) {
		fail("sanity", "contract already expired")
	}
	if !proposal.DirectionConsistent() {
		fail("sanity", "conflicting directional signals")
	}

	if proposal.Conviction < 40 {
		warnings = append(warnings, "speculative conviction")
	}

	if reason != "" {
		return g.reject(failedCheck, reason, warnings)
	}

	return Assessment{
		Approved:  true,
		RiskScore: g.compositeScore(proposal, positionValue, limits, heat),
		Warnings:  warnings,
	}
}

// compositeScore ranks approved trades: confidence, size ratio, heat,
// and a small market-condition jitter term. Lower is better.
func (g *Gate) compositeScore(proposal signal.TradeProposal, positionValue float64, limits Limits, heat float64) float64 {
	confidenceTerm := (1 - proposal.Conviction/100) * 30
	sizeTerm := math.Min(positionValue/limits.MaxPositionSize, 1) * 25
	heatTerm := 0.0
	if limits.MaxPortfolioHeat > 0 {
		heatTerm = math.Min(heat/limits.MaxPortfolioHeat, 1) * 25
	}
	jitter := rand.Float64() * 10

	score := confidenceTerm + sizeTerm + heatTerm + jitter
	if proposal.DTE < 14 {
		score += 10
	}
	return math.Min(score, 100)
}

func (g *Gate) reject(check, reason string, warnings []string) Assessment {
	metrics.RiskRejections.WithLabelValues(check).Inc()
	g.log.Warnw("Trade rejected by risk gate", "reason", reason)
	return Assessment{
		Approved:  false,
		Reason:    reason,
		RiskScore: 100,
		Warnings:  warnings,
	}
}

// failClosed is the internal-error path: reject with the worst score
func (g *Gate) failClosed(reason string, err error) Assessment {
	metrics.RiskRejections.WithLabelValues("risk_system_error").Inc()
	warnings := []string(nil)
	if err != nil {
		warnings = []string{err.Error()}
	}
	return Assessment{
		Approved:  false,
		Reason:    reason,
		RiskScore: 100,
		Warnings:  warnings,
	}
}
