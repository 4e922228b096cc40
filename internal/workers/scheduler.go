package workers

import (
	"context"
	"sync"
	"time"

	"helios/internal/metrics"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// Scheduler runs each registered worker on its own ticker
type Scheduler struct {
	mu      sync.RWMutex
	workers []Worker
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logger.Logger
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{log: logger.Get().With("component", "scheduler")}
}

// Register adds a worker. Registration after Start is rejected.
func (s *Scheduler) Register(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("Cannot register worker after start", "worker", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start launches every enabled worker
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	workers := s.workers
	s.mu.Unlock()

	for _, w := range workers {
		if !w.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", w.Name())
			continue
		}
		s.wg.Add(1)
		go s.runWorker(w)
	}

	s.log.Infow("Worker scheduler started", "workers", len(workers))
	return nil
}

// Stop signals all workers and waits for them to drain
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.log.Info("All workers stopped")
	case <-time.After(shutdownTimeout):
		s.log.Warn("Worker shutdown timed out")
		err = errors.Wrapf(errors.ErrTimeout, "worker shutdown")
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return err
}

// Workers returns the registered workers
func (s *Scheduler) Workers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

func (s *Scheduler) runWorker(w Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	// First run happens immediately
	s.execute(w)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Infow("Worker stopping", "worker", w.Name())
			return
		case <-ticker.C:
			s.execute(w)
		}
	}
}

func (s *Scheduler) execute(w Worker) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Worker panicked", "worker", w.Name(), "panic", r)
			metrics.RecordWorkerExecution(w.Name(), time.Since(start), errors.ErrInternal)
		}
	}()

	err := w.Run(s.ctx)
	metrics.RecordWorkerExecution(w.Name(), time.Since(start), err)

	if base, ok := w.(interface{ recordResult(error) }); ok {
		base.recordResult(err)
	}

	if err != nil {
		s.log.Errorw("Worker run failed",
			"worker", w.Name(),
			"error", err,
			"duration", time.Since(start),
		)
	}
}
