package workers

import (
	"context"
	"time"

	"helios/internal/emergency"
)

// EmergencyMonitorWorker runs the emergency controller's monitoring
// pass. A failed pass is reported but never clears an active control.
type EmergencyMonitorWorker struct {
	*BaseWorker
	controller *emergency.Controller
}

// NewEmergencyMonitorWorker creates the monitor worker
func NewEmergencyMonitorWorker(c *emergency.Controller, interval time.Duration) *EmergencyMonitorWorker {
	return &EmergencyMonitorWorker{
		BaseWorker: NewBaseWorker("emergency_monitor", interval, true),
		controller: c,
	}
}

// Run executes one monitoring pass
func (w *EmergencyMonitorWorker) Run(ctx context.Context) error {
	return w.controller.Tick(ctx)
}
