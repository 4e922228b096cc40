package filter

import (
	"math"
	"sort"

	"helios/internal/domain/alert"
	"helios/internal/metrics"
	"helios/pkg/logger"
)

// Rejection rule identifiers, reported in batch summaries and metrics
const (
	RejectPremiumFloor     = "premium_below_floor"
	RejectBadUnderlying    = "non_positive_underlying"
	RejectBadSize          = "non_positive_size"
	RejectDTEFloor         = "dte_below_floor"
	RejectNoBuyingPressure = "ask_pct_at_or_below_floor"
)

// Params are the tunable floors applied by the filter
type Params struct {
	MinPremium float64
	MinDTE     int
	MinAskPct  float64
}

// DefaultParams mirrors the standard high-conviction flow floors
func DefaultParams() Params {
	return Params{
		MinPremium: 50_000,
		MinDTE:     7,
		MinAskPct:  0.5,
	}
}

// Batch is the result of one filter pass
type Batch struct {
	Alerts []alert.ProcessedAlert

	Received  int
	Accepted  int
	Malformed int

	// Rejected counts survivors of the malformed check dropped per rule
	Rejected map[string]int
}

// TotalRejected returns the number of well-formed alerts dropped by rules
func (b Batch) TotalRejected() int {
	n := 0
	for _, c := range b.Rejected {
		n += c
	}
	return n
}

// Service normalizes raw market alerts and rejects noise.
// It never returns an error: a total failure is an empty batch.
type Service struct {
	params Params
	log    *logger.Logger
}

// New creates an alert filter with the given floors
func New(params Params) *Service {
	return &Service{
		params: params,
		log:    logger.Get().With("component", "alert_filter"),
	}
}

// Filter applies the rejection rules in order and enriches the survivors.
// Output is sorted by premium, largest first.
func (s *Service) Filter(raw []alert.RawAlert) Batch {
	batch := Batch{
		Received: len(raw),
		Rejected: make(map[string]int),
		Alerts:   make([]alert.ProcessedAlert, 0, len(raw)),
	}

	for _, ra := range raw {
		if !wellFormed(ra) {
			batch.Malformed++
			continue
		}

		if rule := s.reject(ra); rule != "" {
			batch.Rejected[rule]++
			continue
		}

		batch.Alerts = append(batch.Alerts, s.enrich(ra))
	}

	sort.SliceStable(batch.Alerts, func(i, j int) bool {
		return batch.Alerts[i].Premium > batch.Alerts[j].Premium
	})

	batch.Accepted = len(batch.Alerts)

	metrics.AlertsReceived.Add(float64(batch.Received))
	metrics.AlertsAccepted.Add(float64(batch.Accepted))
	metrics.AlertsMalformed.Add(float64(batch.Malformed))
	for rule, n := range batch.Rejected {
		metrics.AlertsRejected.WithLabelValues(rule).Add(float64(n))
	}

	s.log.Debugw("Alert batch filtered",
		"received", batch.Received,
		"accepted", batch.Accepted,
		"rejected", batch.TotalRejected(),
		"malformed", batch.Malformed,
	)

	return batch
}

// reject returns the first matching rejection rule, or "" if none apply.
// Rule order is fixed; the first failure wins.
func (s *Service) reject(ra alert.RawAlert) string {
	switch {
	case ra.Premium < s.params.MinPremium:
		return RejectPremiumFloor
	case ra.UnderlyingPrice <= 0:
		return RejectBadUnderlying
	case ra.Size <= 0:
		return RejectBadSize
	case ra.DTE < s.params.MinDTE:
		return RejectDTEFloor
	case ra.AskSidePct <= s.params.MinAskPct:
		return RejectNoBuyingPressure
	}
	return ""
}

func (s *Service) enrich(ra alert.RawAlert) alert.ProcessedAlert {
	pa := alert.ProcessedAlert{RawAlert: ra}

	pa.Moneyness = ra.Strike/ra.UnderlyingPrice - 1

	if ra.DTE > 365 {
		pa.Horizon = alert.HorizonLeap
	} else {
		pa.Horizon = alert.HorizonSwing
	}

	pa.InstitutionalConfidence = institutionalConfidence(ra)
	pa.Conviction = conviction(ra)
	pa.RiskTier = riskTier(pa)

	return pa
}

// conviction blends premium size (40%), ask-side aggression (30%) and an
// opening-position bonus (30%) into a 0..100 score
func conviction(ra alert.RawAlert) float64 {
	premiumScore := math.Min(ra.Premium/1_000_000, 1)

	openingBonus := 0.0
	if ra.Size > 2*ra.OpenInterest {
		openingBonus = 1.0
	}

	score := 40*premiumScore + 30*ra.AskSidePct + 30*openingBonus
	return clamp(score, 0, 100)
}

// institutionalConfidence blends ask aggression with the volume/OI ratio,
// capped at 100
func institutionalConfidence(ra alert.RawAlert) float64 {
	ratio := math.Min(ra.VolumeOIRatio(), 5)
	return math.Min(ra.AskSidePct*60+ratio*8, 100)
}

// riskTier grades how aggressive the underlying bet is: near-dated or deep
// OTM flow is HIGH, well-funded longer-dated conviction is LOW
func riskTier(pa alert.ProcessedAlert) alert.RiskTier {
	switch {
	case pa.DTE < 14 || math.Abs(pa.Moneyness) > 0.15:
		return alert.RiskTierHigh
	case pa.Conviction >= 70 && pa.DTE >= 45:
		return alert.RiskTierLow
	default:
		return alert.RiskTierMedium
	}
}

// wellFormed screens structurally broken alerts before rule evaluation.
// These are dropped silently and only counted.
func wellFormed(ra alert.RawAlert) bool {
	if ra.Ticker == "" || ra.Timestamp.IsZero() {
		return false
	}
	if ra.Side != alert.SideCall && ra.Side != alert.SidePut {
		return false
	}
	if ra.Premium < 0 || ra.Strike <= 0 || ra.OpenInterest < 0 {
		return false
	}
	if ra.AskSidePct < 0 || ra.AskSidePct > 1 {
		return false
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
