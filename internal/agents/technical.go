package agents

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"helios/internal/domain/agent"
	"helios/internal/domain/signal"
	"helios/pkg/logger"
)

const (
	// minimum signals to seed a usable RSI(14)/MACD(12,26,9) series
	technicalMinSignals = 35

	technicalMinConfidence = 0.3

	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// TechnicalAgent derives a trend/momentum read from the recent signal
// sentiment distribution. Real OHLCV is out of reach here, so it
// synthesizes a proxy price series from signal confidence and sentiment
// and runs standard indicators over it.
type TechnicalAgent struct {
	log *logger.Logger
}

// NewTechnicalAgent creates the technical analysis agent
func NewTechnicalAgent() *TechnicalAgent {
	return &TechnicalAgent{
		log: logger.Get().With("agent", agent.NameTechnical),
	}
}

// Name returns the agent identifier
func (a *TechnicalAgent) Name() string {
	return agent.NameTechnical
}

// Analyze computes RSI and MACD over the proxy series and votes with the
// momentum read. Abstains with a thin signal history or when its own
// confidence lands below the floor.
func (a *TechnicalAgent) Analyze(ctx context.Context, in *Input) (*agent.Opinion, error) {
	if len(in.Signals) < technicalMinSignals {
		return nil, nil
	}

	series := proxyCloses(in.Signals)

	rsi := talib.Rsi(series, rsiPeriod)
	_, _, hist := talib.Macd(series, macdFast, macdSlow, macdSignal)

	lastRSI := rsi[len(rsi)-1]
	lastHist := hist[len(hist)-1]

	var action agent.Action
	switch {
	case lastRSI > 55 && lastHist > 0:
		action = agent.ActionBuyCalls
	case lastRSI < 45 && lastHist < 0:
		action = agent.ActionBuyPuts
	default:
		action = agent.ActionHold
	}

	confidence := clamp(
		math.Abs(lastRSI-50)/50*0.7+math.Min(math.Abs(lastHist)*10, 0.3),
		0, 0.95,
	)
	if confidence < technicalMinConfidence {
		a.log.Debugw("Abstaining on weak momentum read",
			"symbol", in.Proposal.Symbol,
			"rsi", lastRSI,
			"macd_hist", lastHist,
			"confidence", confidence,
		)
		return nil, nil
	}

	riskScore := 4.0
	if lastRSI > 75 || lastRSI < 25 {
		// Stretched momentum cuts both ways
		riskScore += 2
	}

	rationale := fmt.Sprintf("RSI %.1f, MACD hist %.3f over %d-signal proxy series",
		lastRSI, lastHist, len(series))

	return newOpinion(a.Name(), in, action, confidence, rationale, riskScore), nil
}

// proxyCloses folds the signal sequence into a synthetic close series:
// each signal drifts the price by up to 1% in its sentiment direction,
// scaled by its confidence.
func proxyCloses(signals []signal.TradingSignal) []float64 {
	series := make([]float64, len(signals)+1)
	series[0] = 100
	for i, sg := range signals {
		drift := 0.01 * sg.Sentiment * sg.Confidence
		series[i+1] = series[i] * (1 + drift)
	}
	return series
}
