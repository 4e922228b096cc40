package config

import (
	"fmt"
	"math"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"helios/internal/domain/agent"
	"helios/pkg/errors"
)

type Config struct {
	App           AppConfig
	Feed          FeedConfig
	Filter        FilterConfig
	Trading       TradingConfig
	Agents        AgentsConfig
	Risk          RiskConfig
	Breaker       BreakerConfig
	Monitor       MonitorConfig
	News          NewsConfig
	Broker        BrokerConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	LLM           LLMConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"helios"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

// FeedConfig controls the options-flow intake
type FeedConfig struct {
	WSURL        string        `envconfig:"FEED_WS_URL"`
	APIKey       string        `envconfig:"FEED_API_KEY"`
	Channels     []string      `envconfig:"FEED_CHANNELS" default:"alerts,flow,signals"`
	PollInterval time.Duration `envconfig:"FEED_POLL_INTERVAL" default:"30s"`
	BatchMax     int           `envconfig:"FEED_BATCH_MAX" default:"500"`
	RatePerSec   float64       `envconfig:"FEED_RATE_PER_SEC" default:"200"`
}

// FilterConfig holds the alert filter floors.
// Preset, when set, overrides the individual floors with a named preset.
type FilterConfig struct {
	Preset     string  `envconfig:"FILTER_PRESET"`
	MinPremium float64 `envconfig:"FILTER_MIN_PREMIUM" default:"50000"`
	MinDTE     int     `envconfig:"FILTER_MIN_DTE" default:"7"`
	MinAskPct  float64 `envconfig:"FILTER_MIN_ASK_PCT" default:"0.5"`
}

type TradingConfig struct {
	// MaxRiskPerTrade is the per-trade USD risk ceiling assigned to
	// every proposal, independent of the alert
	MaxRiskPerTrade float64 `envconfig:"TRADING_MAX_RISK_PER_TRADE" default:"2000"`
}

// AgentsConfig carries the starting weight of each panel agent.
// Weights must sum to 1.
type AgentsConfig struct {
	WeightMarketIntel float64 `envconfig:"AGENT_WEIGHT_MARKET_INTEL" default:"0.25"`
	WeightTechnical   float64 `envconfig:"AGENT_WEIGHT_TECHNICAL" default:"0.25"`
	WeightSentiment   float64 `envconfig:"AGENT_WEIGHT_SENTIMENT" default:"0.20"`
	WeightExecution   float64 `envconfig:"AGENT_WEIGHT_EXECUTION" default:"0.10"`
	WeightRisk        float64 `envconfig:"AGENT_WEIGHT_RISK" default:"0.20"`
}

// Weights returns the configured weights keyed by agent identifier
func (c AgentsConfig) Weights() map[string]float64 {
	return map[string]float64{
		agent.NameMarketIntel: c.WeightMarketIntel,
		agent.NameTechnical:   c.WeightTechnical,
		agent.NameSentiment:   c.WeightSentiment,
		agent.NameExecution:   c.WeightExecution,
		agent.NameRisk:        c.WeightRisk,
	}
}

// RiskConfig holds the portfolio-level risk gate limits
type RiskConfig struct {
	MaxPositionSize  float64 `envconfig:"RISK_MAX_POSITION_SIZE" default:"25000"`
	MaxDailyLoss     float64 `envconfig:"RISK_MAX_DAILY_LOSS" default:"3000"`
	MaxPortfolioHeat float64 `envconfig:"RISK_MAX_PORTFOLIO_HEAT" default:"0.30"`
	MaxDrawdownPct   float64 `envconfig:"RISK_MAX_DRAWDOWN_PCT" default:"0.10"`
	MaxContracts     int     `envconfig:"RISK_MAX_CONTRACTS" default:"50"`
}

// BreakerConfig holds the emergency controller thresholds.
// Loss limits are negative numbers: the control fires at or below them.
type BreakerConfig struct {
	DailyLossLimit     float64       `envconfig:"BREAKER_DAILY_LOSS_LIMIT" default:"-2000"`
	PositionLossLimit  float64       `envconfig:"BREAKER_POSITION_LOSS_LIMIT" default:"-500"`
	DailyDrawdownLimit float64       `envconfig:"BREAKER_DAILY_DRAWDOWN_LIMIT" default:"-5000"`
	AccountLossPct     float64       `envconfig:"BREAKER_ACCOUNT_LOSS_PCT" default:"0.20"`
	Cooldown           time.Duration `envconfig:"BREAKER_COOLDOWN" default:"15m"`
}

type MonitorConfig struct {
	TickInterval       time.Duration `envconfig:"MONITOR_TICK_INTERVAL" default:"10s"`
	DailyResetInterval time.Duration `envconfig:"MONITOR_DAILY_RESET_INTERVAL" default:"24h"`
}

// NewsConfig points at the company-news API used by the sentiment agent
type NewsConfig struct {
	BaseURL string        `envconfig:"NEWS_BASE_URL" default:"https://finnhub.io/api/v1"`
	APIKey  string        `envconfig:"NEWS_API_KEY"`
	Timeout time.Duration `envconfig:"NEWS_TIMEOUT" default:"15s"`
}

// Enabled reports whether the news feed is configured
func (c NewsConfig) Enabled() bool {
	return c.APIKey != ""
}

// BrokerConfig points at the brokerage REST API
type BrokerConfig struct {
	BaseURL string        `envconfig:"BROKER_BASE_URL"`
	APIKey  string        `envconfig:"BROKER_API_KEY"`
	Timeout time.Duration `envconfig:"BROKER_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether emergency state persistence is configured
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

// Enabled reports whether the audit stream is configured
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

// Enabled reports whether telegram notifications are configured
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

type LLMConfig struct {
	OpenAIKey string        `envconfig:"OPENAI_API_KEY"`
	Model     string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	Timeout   time.Duration `envconfig:"LLM_TIMEOUT" default:"20s"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables.
// It first tries to load a .env file (useful for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects invalid limits and non-normalized weights before they
// can reach any running component. Every violation is reported, not just
// the first.
func (c *Config) Validate() error {
	errs := &errors.MultiError{}

	sum := 0.0
	for name, w := range c.Agents.Weights() {
		if w < 0 || w > 1 {
			errs.Add(errors.NewValidationError("agent_weights", "weight must be in [0,1] for "+name, w))
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		errs.Add(errors.NewValidationError("agent_weights", "weights must sum to 1", sum))
	}

	if c.Filter.MinPremium < 0 {
		errs.Add(errors.NewValidationError("filter.min_premium", "must be >= 0", c.Filter.MinPremium))
	}
	if c.Trading.MaxRiskPerTrade <= 0 {
		errs.Add(errors.NewValidationError("trading.max_risk_per_trade", "must be > 0", c.Trading.MaxRiskPerTrade))
	}

	if c.Risk.MaxPositionSize <= 0 {
		errs.Add(errors.NewValidationError("risk.max_position_size", "must be > 0", c.Risk.MaxPositionSize))
	}
	if c.Risk.MaxDailyLoss <= 0 {
		errs.Add(errors.NewValidationError("risk.max_daily_loss", "must be > 0", c.Risk.MaxDailyLoss))
	}
	if c.Risk.MaxPortfolioHeat <= 0 || c.Risk.MaxPortfolioHeat > 1 {
		errs.Add(errors.NewValidationError("risk.max_portfolio_heat", "must be in (0,1]", c.Risk.MaxPortfolioHeat))
	}
	if c.Risk.MaxContracts <= 0 {
		errs.Add(errors.NewValidationError("risk.max_contracts", "must be > 0", c.Risk.MaxContracts))
	}

	if c.Breaker.DailyLossLimit >= 0 {
		errs.Add(errors.NewValidationError("breaker.daily_loss_limit", "must be negative", c.Breaker.DailyLossLimit))
	}
	if c.Breaker.PositionLossLimit >= 0 {
		errs.Add(errors.NewValidationError("breaker.position_loss_limit", "must be negative", c.Breaker.PositionLossLimit))
	}
	if c.Breaker.DailyDrawdownLimit >= 0 {
		errs.Add(errors.NewValidationError("breaker.daily_drawdown_limit", "must be negative", c.Breaker.DailyDrawdownLimit))
	}
	if c.Breaker.DailyDrawdownLimit > c.Breaker.DailyLossLimit {
		errs.Add(errors.NewValidationError("breaker.daily_drawdown_limit",
			"kill-switch limit must be at or below the circuit-breaker limit", c.Breaker.DailyDrawdownLimit))
	}
	if c.Breaker.AccountLossPct <= 0 || c.Breaker.AccountLossPct > 1 {
		errs.Add(errors.NewValidationError("breaker.account_loss_pct", "must be in (0,1]", c.Breaker.AccountLossPct))
	}
	if c.Breaker.Cooldown <= 0 {
		errs.Add(errors.NewValidationError("breaker.cooldown", "must be > 0", c.Breaker.Cooldown))
	}

	if c.Monitor.TickInterval <= 0 {
		errs.Add(errors.NewValidationError("monitor.tick_interval", "must be > 0", c.Monitor.TickInterval))
	}

	return errs.ToError()
}
