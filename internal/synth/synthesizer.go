package synth

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"helios/internal/domain/alert"
	"helios/internal/domain/signal"
	"helios/pkg/logger"
)

// Target bands by horizon: how far above/below entry the target may sit
const (
	leapUpBand    = 0.50
	leapDownBand  = 0.30
	swingUpBand   = 0.25
	swingDownBand = 0.20
)

// Synthesizer converts processed alerts into directional trade proposals
type Synthesizer struct {
	maxRiskPerTrade float64
	log             *logger.Logger
}

// New creates a synthesizer with the configured per-trade risk ceiling
func New(maxRiskPerTrade float64) *Synthesizer {
	return &Synthesizer{
		maxRiskPerTrade: maxRiskPerTrade,
		log:             logger.Get().With("component", "signal_synthesizer"),
	}
}

// Synthesize builds a trade proposal from a processed alert.
// Direction follows the option side: calls read bullish, puts bearish.
func (s *Synthesizer) Synthesize(pa alert.ProcessedAlert) signal.TradeProposal {
	direction := signal.DirectionBullish
	if pa.Side == alert.SidePut {
		direction = signal.DirectionBearish
	}

	entry := pa.UnderlyingPrice
	target := targetPrice(entry, direction, pa.Moneyness, pa.Horizon)

	proposal := signal.TradeProposal{
		ID:        uuid.New(),
		Symbol:    pa.Ticker,
		Direction: direction,
		Side:      pa.Side,

		Entry:   entry,
		Target:  target,
		MaxRisk: s.maxRiskPerTrade,

		Horizon:                 pa.Horizon,
		Conviction:              pa.Conviction,
		InstitutionalConfidence: pa.InstitutionalConfidence,
		Moneyness:               pa.Moneyness,
		Premium:                 pa.Premium,
		DTE:                     pa.DTE,
		Expiry:                  pa.Expiry(),

		Rationale: rationale(pa),
		CreatedAt: time.Now(),
	}

	s.log.Debugw("Proposal synthesized",
		"symbol", proposal.Symbol,
		"direction", proposal.Direction,
		"entry", proposal.Entry,
		"target", proposal.Target,
	)

	return proposal
}

// targetPrice offsets the entry by a moneyness-scaled fraction of the
// horizon band. Deeper OTM strikes imply wider expected moves.
func targetPrice(entry float64, direction signal.Direction, moneyness float64, horizon alert.Horizon) float64 {
	upBand, downBand := swingUpBand, swingDownBand
	if horizon == alert.HorizonLeap {
		upBand, downBand = leapUpBand, leapDownBand
	}

	// Scale from half the band at the money up to the full band at
	// 50% OTM or deeper
	scale := 0.5 + math.Min(math.Abs(moneyness), 0.5)

	if direction == signal.DirectionBullish {
		return entry * (1 + upBand*scale)
	}
	return entry * (1 - downBand*scale)
}

// rationale builds the advisory explanation string. It is deterministic
// for a given alert and never feeds back into control decisions.
func rationale(pa alert.ProcessedAlert) string {
	parts := []string{
		fmt.Sprintf("%s $%s premium", premiumBucket(pa.Premium), humanize.CommafWithDigits(pa.Premium, 0)),
		fmt.Sprintf("%s conviction (%.0f)", convictionBucket(pa.Conviction), pa.Conviction),
		fmt.Sprintf("%s institutional footprint (%.0f)", institutionalBucket(pa.InstitutionalConfidence), pa.InstitutionalConfidence),
		fmt.Sprintf("%s horizon (%dd)", pa.Horizon, pa.DTE),
		moneynessBucket(pa.Moneyness),
	}
	return strings.Join(parts, "; ")
}

func premiumBucket(premium float64) string {
	switch {
	case premium >= 1_000_000:
		return "massive"
	case premium >= 500_000:
		return "heavy"
	case premium >= 250_000:
		return "large"
	default:
		return "notable"
	}
}

func convictionBucket(c float64) string {
	switch {
	case c >= 80:
		return "high"
	case c >= 60:
		return "solid"
	case c >= 40:
		return "moderate"
	default:
		return "speculative"
	}
}

func institutionalBucket(c float64) string {
	switch {
	case c >= 70:
		return "strong"
	case c >= 40:
		return "mixed"
	default:
		return "light"
	}
}

func moneynessBucket(m float64) string {
	pct := math.Abs(m) * 100
	switch {
	case math.Abs(m) < 0.02:
		return "near the money"
	case m > 0:
		return fmt.Sprintf("%.0f%% OTM strike", pct)
	default:
		return fmt.Sprintf("%.0f%% ITM strike", pct)
	}
}
