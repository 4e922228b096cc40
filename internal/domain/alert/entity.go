package alert

import (
	"context"
	"time"
)

// OptionSide identifies the option type of an alert
type OptionSide string

const (
	SideCall OptionSide = "call"
	SidePut  OptionSide = "put"
)

// RiskTier buckets an alert by how aggressive the underlying bet is
type RiskTier string

const (
	RiskTierLow    RiskTier = "LOW"
	RiskTierMedium RiskTier = "MEDIUM"
	RiskTierHigh   RiskTier = "HIGH"
)

// Horizon classifies a trade idea by days to expiry
type Horizon string

const (
	// HorizonSwing covers contracts expiring within a year
	HorizonSwing Horizon = "swing"

	// HorizonLeap covers long-dated contracts (>365 DTE)
	HorizonLeap Horizon = "leap"
)

// RawAlert is an options-flow alert as delivered by the market data feed.
// Immutable once received.
type RawAlert struct {
	Ticker          string     `json:"ticker"`
	Side            OptionSide `json:"side"`
	Premium         float64    `json:"premium"`
	Size            int64      `json:"size"`
	OpenInterest    int64      `json:"open_interest"`
	AskSidePct      float64    `json:"ask_side_pct"` // 0..1 share of volume executed at the ask
	DTE             int        `json:"dte"`
	Strike          float64    `json:"strike"`
	UnderlyingPrice float64    `json:"underlying_price"`
	RuleTag         string     `json:"rule_tag"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Expiry returns the contract expiry derived from the alert timestamp and DTE
func (a RawAlert) Expiry() time.Time {
	return a.Timestamp.AddDate(0, 0, a.DTE)
}

// VolumeOIRatio returns traded size relative to open interest.
// A ratio above 1 suggests freshly opened positions.
func (a RawAlert) VolumeOIRatio() float64 {
	if a.OpenInterest <= 0 {
		return float64(a.Size)
	}
	return float64(a.Size) / float64(a.OpenInterest)
}

// ProcessedAlert is a RawAlert enriched by the alert filter.
// Read-only for all downstream components.
type ProcessedAlert struct {
	RawAlert

	Moneyness               float64  `json:"moneyness"`                // strike/underlying - 1
	Conviction              float64  `json:"conviction"`               // 0..100
	InstitutionalConfidence float64  `json:"institutional_confidence"` // 0..100
	RiskTier                RiskTier `json:"risk_tier"`
	Horizon                 Horizon  `json:"horizon"`
}

// Source supplies batches of raw alerts from the market data collaborator
type Source interface {
	// Poll returns the alerts accumulated since the previous call.
	// An empty slice is a normal quiet-market result, not an error.
	Poll(ctx context.Context) ([]RawAlert, error)
}
