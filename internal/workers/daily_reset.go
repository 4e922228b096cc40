package workers

import (
	"context"
	"time"
)

// SessionCache is market state that accumulates over a trading session
type SessionCache interface {
	Reset()
}

// DailyResetWorker rolls the session: accumulated flow aggregates and
// signal history are cleared so agents read only current-session data
type DailyResetWorker struct {
	*BaseWorker
	caches []SessionCache
}

// NewDailyResetWorker creates the session reset worker
func NewDailyResetWorker(interval time.Duration, caches ...SessionCache) *DailyResetWorker {
	return &DailyResetWorker{
		BaseWorker: NewBaseWorker("daily_reset", interval, true),
		caches:     caches,
	}
}

// Run clears every registered session cache
func (w *DailyResetWorker) Run(context.Context) error {
	for _, c := range w.caches {
		c.Reset()
	}
	w.Log().Info("Session state reset")
	return nil
}
