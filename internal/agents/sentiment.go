package agents

import (
	"context"
	"fmt"
	"strings"

	"helios/internal/domain/agent"
	"helios/internal/domain/sentiment"
	"helios/pkg/logger"
)

// Fixed blend weights across the three sentiment sources
const (
	newsWeight   = 0.3
	flowWeight   = 0.4
	signalWeight = 0.3

	sentimentMinConfidence = 0.4

	// confidence haircut when the LLM scorer is unavailable and the
	// keyword heuristic fills in
	degradedFactor = 0.8
)

// SentimentAgent blends news, option-flow, and signal sentiment.
// The narrative scorer is an optional collaborator; without it the agent
// falls back to a keyword heuristic at degraded confidence.
type SentimentAgent struct {
	feed   sentiment.Feed
	scorer sentiment.Scorer
	log    *logger.Logger
}

// NewSentimentAgent creates the sentiment agent. Both collaborators may
// be nil; the agent degrades accordingly.
func NewSentimentAgent(feed sentiment.Feed, scorer sentiment.Scorer) *SentimentAgent {
	return &SentimentAgent{
		feed:   feed,
		scorer: scorer,
		log:    logger.Get().With("agent", agent.NameSentiment),
	}
}

// Name returns the agent identifier
func (a *SentimentAgent) Name() string {
	return agent.NameSentiment
}

// Analyze blends the three sources with fixed 30/40/30 weights and
// abstains below the confidence floor.
func (a *SentimentAgent) Analyze(ctx context.Context, in *Input) (*agent.Opinion, error) {
	newsScore, newsAvailable, degraded := a.newsSentiment(ctx, in.Proposal.Symbol)

	var flowScore float64
	flowAvailable := in.Flow != nil && in.Flow.CallPremium+in.Flow.PutPremium > 0
	if flowAvailable {
		flowScore = in.Flow.Sentiment()
	}

	signalScore, signalAvailable := weightedSignalSentiment(in.Signals)

	sources := 0
	for _, ok := range []bool{newsAvailable, flowAvailable, signalAvailable} {
		if ok {
			sources++
		}
	}
	if sources == 0 {
		return nil, nil
	}

	composite := newsWeight*newsScore + flowWeight*flowScore + signalWeight*signalScore

	coverage := float64(sources) / 3
	confidence := clamp(abs(composite)*0.7+coverage*0.3, 0, 0.95)
	if degraded {
		confidence *= degradedFactor
	}
	if confidence < sentimentMinConfidence {
		return nil, nil
	}

	action := agent.ActionHold
	switch {
	case composite > 0.2:
		action = agent.ActionBuyCalls
	case composite < -0.2:
		action = agent.ActionBuyPuts
	}

	riskScore := 5.0 - abs(composite)*2

	rationale := fmt.Sprintf("news %.2f, flow %.2f, signals %.2f -> composite %.2f (%d/3 sources)",
		newsScore, flowScore, signalScore, composite, sources)
	if degraded {
		rationale += "; keyword fallback in use"
	}

	return newOpinion(a.Name(), in, action, confidence, rationale, riskScore), nil
}

// newsSentiment returns (score, available, degraded)
func (a *SentimentAgent) newsSentiment(ctx context.Context, symbol string) (float64, bool, bool) {
	if a.feed == nil {
		return 0, false, false
	}

	headlines, err := a.feed.Latest(ctx, symbol, 10)
	if err != nil || len(headlines) == 0 {
		if err != nil {
			a.log.Warnw("News feed unavailable", "symbol", symbol, "error", err)
		}
		return 0, false, false
	}

	if a.scorer != nil {
		score, err := a.scorer.Score(ctx, symbol, headlines)
		if err == nil {
			return clamp(score, -1, 1), true, false
		}
		a.log.Warnw("Narrative scorer unavailable, using keyword heuristic",
			"symbol", symbol, "error", err)
	}

	return keywordSentiment(headlines), true, true
}

var bullishWords = []string{
	"beat", "beats", "upgrade", "upgraded", "surge", "rally", "record",
	"growth", "strong", "buyback", "raise", "raised", "outperform",
}

var bearishWords = []string{
	"miss", "misses", "downgrade", "downgraded", "plunge", "selloff",
	"lawsuit", "probe", "weak", "cut", "cuts", "recall", "underperform",
}

// keywordSentiment is the fallback scorer: net keyword hits normalized
// by headline count
func keywordSentiment(headlines []sentiment.Headline) float64 {
	score := 0.0
	for _, h := range headlines {
		text := strings.ToLower(h.Title + " " + h.Summary)
		for _, w := range bullishWords {
			if strings.Contains(text, w) {
				score++
				break
			}
		}
		for _, w := range bearishWords {
			if strings.Contains(text, w) {
				score--
				break
			}
		}
	}
	if len(headlines) == 0 {
		return 0
	}
	return clamp(score/float64(len(headlines)), -1, 1)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
