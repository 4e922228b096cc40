package sentiment

import (
	"context"
	"time"
)

// Headline is a news item about a symbol
type Headline struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Feed supplies recent headlines from the news collaborator
type Feed interface {
	Latest(ctx context.Context, symbol string, limit int) ([]Headline, error)
}

// Scorer rates a set of headlines in [-1, 1].
// The LLM-backed implementation may be unavailable; callers fall back to
// a keyword heuristic at degraded confidence.
type Scorer interface {
	Score(ctx context.Context, symbol string, headlines []Headline) (float64, error)
}
