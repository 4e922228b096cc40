package emergency

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "helios/internal/domain/emergency"
	"helios/internal/domain/portfolio"
	"helios/internal/metrics"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

// Thresholds hold the trip limits. Loss limits are negative numbers:
// a control fires when the measured PnL is at or below its limit.
type Thresholds struct {
	DailyLossLimit     float64
	PositionLossLimit  float64
	DailyDrawdownLimit float64
	AccountLossPct     float64
	Cooldown           time.Duration
}

// Alerter receives every published state change
type Alerter interface {
	EmergencyChanged(ctx context.Context, state domain.State)
}

// Controller owns the emergency state machine. It is the only writer of
// the published state; everything else reads through Snapshot.
//
// Severity only escalates on its own. The circuit breaker clears after
// the cooldown, the emergency stop and kill switch clear only through
// the explicit deactivation calls.
type Controller struct {
	mu    sync.Mutex
	state domain.State

	// drawdownFired keeps the drawdown kill switch a one-shot until
	// it is explicitly deactivated
	drawdownFired bool

	// resetGen invalidates a pending cooldown reset when the breaker
	// re-trips or escalates before the timer fires
	resetGen   uint64
	resetTimer *time.Timer

	thresholds Thresholds
	broker     portfolio.Broker
	store      domain.Store
	alerter    Alerter

	now func() time.Time
	log *logger.Logger
}

// NewController creates the emergency controller
func NewController(thresholds Thresholds, broker portfolio.Broker, store domain.Store, alerter Alerter) *Controller {
	return &Controller{
		state:      domain.State{UpdatedAt: time.Now()},
		thresholds: thresholds,
		broker:     broker,
		store:      store,
		alerter:    alerter,
		now:        time.Now,
		log:        logger.Get().With("component", "emergency_controller"),
	}
}

// Snapshot returns the current published state
func (c *Controller) Snapshot() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Restore adopts a persisted halt after a restart. A halt that was
// active when the process died stays active until deactivated.
func (c *Controller) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	saved, err := c.store.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load persisted emergency state")
	}
	if saved == nil || !saved.TradingHalted() {
		return nil
	}

	c.mu.Lock()
	c.state = *saved
	c.state.UpdatedAt = c.now()
	c.drawdownFired = saved.MaxDrawdownReached

	// A restored breaker must still auto-resume: re-arm the reset for
	// whatever is left of the cooldown that was running before the restart
	if c.state.CircuitBreakerTriggered && !c.state.HardHalt() {
		remaining := c.thresholds.Cooldown - c.now().Sub(c.state.TriggeredAt)
		if remaining < 0 {
			remaining = 0
		}
		c.scheduleResetLocked(remaining)
	}
	state := c.state
	c.mu.Unlock()

	metrics.EmergencyLevel.Set(float64(state.Level()))
	c.log.Warnw("Restored active emergency state",
		"level", state.Level().String(),
		"reason", state.Reason,
	)
	return nil
}

// Tick runs one monitoring pass. A failed pass leaves the previous
// state untouched: controls are never cleared on missing data.
func (c *Controller) Tick(ctx context.Context) error {
	account, err := c.broker.Account(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch account snapshot")
	}
	positions, err := c.broker.OpenPositions(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch open positions")
	}

	dailyPnL, _ := account.DailyPnL().Float64()
	equity, _ := account.NetLiquidation.Float64()

	// Most severe condition first
	if dailyPnL <= c.thresholds.DailyDrawdownLimit {
		c.tripKillSwitch(ctx,
			fmt.Sprintf("daily drawdown $%.0f breached limit $%.0f", dailyPnL, c.thresholds.DailyDrawdownLimit),
			true,
		)
		return nil
	}

	startEquity := equity - dailyPnL
	if startEquity > 0 && dailyPnL < 0 && -dailyPnL/startEquity >= c.thresholds.AccountLossPct {
		c.tripKillSwitch(ctx,
			fmt.Sprintf("account down %.1f%% on the day", -dailyPnL/startEquity*100),
			false,
		)
		return nil
	}

	if dailyPnL <= c.thresholds.DailyLossLimit {
		c.tripCircuitBreaker(ctx,
			fmt.Sprintf("daily loss $%.0f breached limit $%.0f", dailyPnL, c.thresholds.DailyLossLimit),
		)
		return nil
	}

	for _, pos := range positions {
		posPnL, _ := pos.UnrealizedPnL.Float64()
		if posPnL <= c.thresholds.PositionLossLimit {
			c.tripCircuitBreaker(ctx,
				fmt.Sprintf("%s position down $%.0f, limit $%.0f", pos.Symbol, posPnL, c.thresholds.PositionLossLimit),
			)
			return nil
		}
	}

	c.heartbeat()
	return nil
}

// heartbeat refreshes UpdatedAt so downstream staleness checks pass
func (c *Controller) heartbeat() {
	c.mu.Lock()
	c.state.UpdatedAt = c.now()
	c.mu.Unlock()
}

func (c *Controller) tripCircuitBreaker(ctx context.Context, reason string) {
	c.mu.Lock()
	if c.state.TradingHalted() {
		c.state.UpdatedAt = c.now()
		c.mu.Unlock()
		return
	}

	// The breaker is a temporary pause that resumes on its own, so working
	// orders are left alone; only the hard halts pull them
	now := c.now()
	c.state.CircuitBreakerTriggered = true
	c.state.Reason = reason
	c.state.TriggeredAt = now
	c.state.UpdatedAt = now
	state := c.state

	c.scheduleResetLocked(c.thresholds.Cooldown)
	c.mu.Unlock()

	metrics.CircuitBreakerTrips.WithLabelValues("loss_limit").Inc()
	c.publish(ctx, state, "Circuit breaker tripped")
}

func (c *Controller) tripKillSwitch(ctx context.Context, reason string, drawdown bool) {
	c.mu.Lock()
	if c.state.KillSwitchActive || (drawdown && c.drawdownFired) {
		c.state.UpdatedAt = c.now()
		c.mu.Unlock()
		return
	}

	c.cancelOrders(ctx, "kill switch")

	now := c.now()
	c.state.KillSwitchActive = true
	c.state.Reason = reason
	c.state.TriggeredAt = now
	c.state.UpdatedAt = now
	if drawdown {
		c.state.MaxDrawdownReached = true
		c.drawdownFired = true
	}
	state := c.state

	c.cancelPendingResetLocked()
	c.mu.Unlock()

	c.publish(ctx, state, "Kill switch activated")
}

// ActivateEmergencyStop halts new entries until explicitly deactivated
func (c *Controller) ActivateEmergencyStop(ctx context.Context, reason string) {
	c.mu.Lock()
	if c.state.EmergencyStopActive {
		c.mu.Unlock()
		return
	}

	c.cancelOrders(ctx, "emergency stop")

	now := c.now()
	c.state.EmergencyStopActive = true
	c.state.Reason = reason
	c.state.TriggeredAt = now
	c.state.UpdatedAt = now
	state := c.state

	c.cancelPendingResetLocked()
	c.mu.Unlock()

	c.publish(ctx, state, "Emergency stop activated")
}

// DeactivateEmergencyStop lifts a manual stop. A kill switch set in the
// meantime stays in force.
func (c *Controller) DeactivateEmergencyStop(ctx context.Context) {
	c.mu.Lock()
	if !c.state.EmergencyStopActive {
		c.mu.Unlock()
		return
	}
	c.state.EmergencyStopActive = false
	if !c.state.TradingHalted() {
		c.state.Reason = ""
	}
	c.state.UpdatedAt = c.now()
	state := c.state
	c.mu.Unlock()

	c.publish(ctx, state, "Emergency stop deactivated")
}

// ActivateKillSwitch is the manual trigger for the hardest halt
func (c *Controller) ActivateKillSwitch(ctx context.Context, reason string) {
	c.tripKillSwitch(ctx, reason, false)
}

// DeactivateKillSwitch is the only way a kill switch clears
func (c *Controller) DeactivateKillSwitch(ctx context.Context) {
	c.mu.Lock()
	if !c.state.KillSwitchActive {
		c.mu.Unlock()
		return
	}
	c.state.KillSwitchActive = false
	c.state.MaxDrawdownReached = false
	c.drawdownFired = false
	if !c.state.TradingHalted() {
		c.state.Reason = ""
	}
	c.state.UpdatedAt = c.now()
	state := c.state
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
			c.log.Errorw("Failed to clear persisted emergency state", "error", err)
		}
	}

	metrics.EmergencyLevel.Set(float64(state.Level()))
	c.log.Warn("Kill switch deactivated")
	if c.alerter != nil {
		c.alerter.EmergencyChanged(ctx, state)
	}
}

// scheduleResetLocked arms the cooldown reset. Caller holds c.mu.
func (c *Controller) scheduleResetLocked(delay time.Duration) {
	c.resetGen++
	gen := c.resetGen
	if c.resetTimer != nil {
		c.resetTimer.Stop()
	}
	c.resetTimer = time.AfterFunc(delay, func() {
		c.resetCircuitBreaker(gen)
	})
}

// cancelPendingResetLocked invalidates an armed cooldown reset.
// Caller holds c.mu.
func (c *Controller) cancelPendingResetLocked() {
	c.resetGen++
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

func (c *Controller) resetCircuitBreaker(gen uint64) {
	c.mu.Lock()
	if gen != c.resetGen || !c.state.CircuitBreakerTriggered {
		c.mu.Unlock()
		return
	}
	c.state.CircuitBreakerTriggered = false
	if !c.state.TradingHalted() {
		c.state.Reason = ""
	}
	c.state.UpdatedAt = c.now()
	state := c.state
	c.mu.Unlock()

	ctx := context.Background()
	if c.store != nil && !state.TradingHalted() {
		if err := c.store.Clear(ctx); err != nil {
			c.log.Errorw("Failed to clear persisted emergency state", "error", err)
		}
	}

	metrics.EmergencyLevel.Set(float64(state.Level()))
	c.log.Info("Circuit breaker reset after cooldown")
	if c.alerter != nil {
		c.alerter.EmergencyChanged(ctx, state)
	}
}

// cancelOrders pulls working orders before the new state becomes
// visible to anything reading Snapshot. Caller holds c.mu.
func (c *Controller) cancelOrders(ctx context.Context, trigger string) {
	cancelled, err := c.broker.CancelAllOrders(ctx)
	if err != nil {
		c.log.Errorw("Order cancellation failed during halt",
			"trigger", trigger,
			"error", err,
		)
		return
	}
	c.log.Warnw("Cancelled working orders", "trigger", trigger, "count", cancelled)
}

// publish persists and announces a newly tripped state
func (c *Controller) publish(ctx context.Context, state domain.State, msg string) {
	if c.store != nil {
		if err := c.store.Save(context.WithoutCancel(ctx), state); err != nil {
			c.log.Errorw("Failed to persist emergency state", "error", err)
		}
	}

	metrics.EmergencyLevel.Set(float64(state.Level()))
	c.log.Warnw(msg, "level", state.Level().String(), "reason", state.Reason)

	if c.alerter != nil {
		c.alerter.EmergencyChanged(ctx, state)
	}
}
