package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helios/pkg/errors"
)

func validConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			WeightMarketIntel: 0.25,
			WeightTechnical:   0.25,
			WeightSentiment:   0.20,
			WeightExecution:   0.10,
			WeightRisk:        0.20,
		},
		Filter:  FilterConfig{MinPremium: 50_000, MinDTE: 7, MinAskPct: 0.5},
		Trading: TradingConfig{MaxRiskPerTrade: 2000},
		Risk: RiskConfig{
			MaxPositionSize:  25_000,
			MaxDailyLoss:     3000,
			MaxPortfolioHeat: 0.30,
			MaxDrawdownPct:   0.10,
			MaxContracts:     50,
		},
		Breaker: BreakerConfig{
			DailyLossLimit:     -2000,
			PositionLossLimit:  -500,
			DailyDrawdownLimit: -5000,
			AccountLossPct:     0.20,
			Cooldown:           15 * time.Minute,
		},
		Monitor: MonitorConfig{
			TickInterval:       10 * time.Second,
			DailyResetInterval: 24 * time.Hour,
		},
	}
}

func TestValidateAcceptsSaneConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateReportsEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Risk.MaxContracts = 0
	cfg.Breaker.Cooldown = 0
	cfg.Trading.MaxRiskPerTrade = -1

	err := cfg.Validate()
	require.Error(t, err)

	var multi *errors.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 3)
}

func TestValidateRejectsUnnormalizedWeights(t *testing.T) {
	cfg := validConfig()
	cfg.Agents.WeightRisk = 0.5

	assert.Error(t, cfg.Validate())
}
