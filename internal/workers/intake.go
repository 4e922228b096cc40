package workers

import (
	"context"
	"time"

	"helios/internal/pipeline"
)

// IntakeWorker drives the alert pipeline on a fixed cadence
type IntakeWorker struct {
	*BaseWorker
	pipeline *pipeline.Pipeline
}

// NewIntakeWorker creates the intake worker
func NewIntakeWorker(p *pipeline.Pipeline, interval time.Duration) *IntakeWorker {
	return &IntakeWorker{
		BaseWorker: NewBaseWorker("alert_intake", interval, true),
		pipeline:   p,
	}
}

// Run executes one intake cycle
func (w *IntakeWorker) Run(ctx context.Context) error {
	return w.pipeline.RunCycle(ctx)
}
