package consensus

import (
	"math"
	"sync"

	"helios/internal/domain/decision"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

// WeightTable holds the per-agent voting weights, normalized to sum 1.
// Reads during a consensus cycle use a copied snapshot, so a concurrent
// weight update can never expose a half-renormalized table.
type WeightTable struct {
	mu      sync.RWMutex
	weights map[string]float64
	log     *logger.Logger
}

// NewWeightTable creates a weight table from validated initial weights
func NewWeightTable(initial map[string]float64) (*WeightTable, error) {
	if len(initial) == 0 {
		return nil, errors.NewValidationError("weights", "at least one agent required", initial)
	}

	sum := 0.0
	for name, w := range initial {
		if w < 0 || w > 1 {
			return nil, errors.NewValidationError("weights", "weight out of [0,1] for "+name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return nil, errors.NewValidationError("weights", "weights must sum to 1", sum)
	}

	weights := make(map[string]float64, len(initial))
	for name, w := range initial {
		weights[name] = w
	}

	return &WeightTable{
		weights: weights,
		log:     logger.Get().With("component", "weight_table"),
	}, nil
}

// Snapshot returns a consistent copy of the current weights
func (t *WeightTable) Snapshot() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]float64, len(t.weights))
	for name, w := range t.weights {
		out[name] = w
	}
	return out
}

// Update recomputes weights from a batch of labeled trade outcomes.
// Each participating agent's new raw weight is its hit-rate across the
// batch; agents absent from the batch keep their previous weight. The
// whole table is then renormalized to sum 1 and swapped in atomically.
func (t *WeightTable) Update(outcomes []decision.TradeOutcome) error {
	hits := make(map[string]int)
	totals := make(map[string]int)

	for _, out := range outcomes {
		seen := make(map[string]bool, len(out.Opinions))
		for _, op := range out.Opinions {
			if seen[op.Agent] {
				continue
			}
			seen[op.Agent] = true
			totals[op.Agent]++
			if out.Profitable {
				hits[op.Agent]++
			}
		}
	}

	if len(totals) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	updated := make(map[string]float64, len(t.weights))
	for name, w := range t.weights {
		updated[name] = w
	}
	for name, total := range totals {
		// Outcomes can only refit the configured panel; an unknown name
		// in the batch is a labeling mistake, not a new voter
		if _, tracked := updated[name]; !tracked {
			t.log.Warnw("Outcome from untracked agent ignored", "agent", name)
			continue
		}
		updated[name] = float64(hits[name]) / float64(total)
	}

	sum := 0.0
	for _, w := range updated {
		sum += w
	}
	if sum == 0 {
		// Every tracked agent struck out; fall back to equal weights
		// rather than zeroing the table
		equal := 1.0 / float64(len(updated))
		for name := range updated {
			updated[name] = equal
		}
	} else {
		for name := range updated {
			updated[name] /= sum
		}
	}

	t.weights = updated

	t.log.Infow("Agent weights updated",
		"outcomes", len(outcomes),
		"agents_seen", len(totals),
		"weights", updated,
	)

	return nil
}
