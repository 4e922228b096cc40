package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helios/internal/adapters/brokerage"
	"helios/internal/adapters/config"
	"helios/internal/adapters/errors/noop"
	"helios/internal/adapters/errors/sentry"
	"helios/internal/adapters/flowfeed"
	"helios/internal/adapters/kafka"
	"helios/internal/adapters/llm"
	"helios/internal/adapters/newswire"
	"helios/internal/adapters/redis"
	"helios/internal/adapters/telegram"
	"helios/internal/agents"
	"helios/internal/consensus"
	"helios/internal/domain/emergency"
	domainsentiment "helios/internal/domain/sentiment"
	emergencyctl "helios/internal/emergency"
	"helios/internal/events"
	"helios/internal/filter"
	"helios/internal/metrics"
	"helios/internal/pipeline"
	"helios/internal/riskgate"
	"helios/internal/synth"
	"helios/internal/workers"
	"helios/pkg/errors"
	"helios/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collaborators
	broker, err := brokerage.NewClient(brokerage.Config{
		BaseURL: cfg.Broker.BaseURL,
		APIKey:  cfg.Broker.APIKey,
		Timeout: cfg.Broker.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create brokerage client: %v", err)
	}

	feed := flowfeed.NewClient(flowfeed.Config{
		URL:         cfg.Feed.WSURL,
		APIKey:      cfg.Feed.APIKey,
		Channels:    cfg.Feed.Channels,
		MessageRate: cfg.Feed.RatePerSec,
		BatchMax:    cfg.Feed.BatchMax,
	})
	if err := feed.Start(ctx); err != nil {
		log.Fatalf("Failed to start flow feed: %v", err)
	}
	defer feed.Stop()

	// Event sinks
	dispatcher := events.NewDispatcher()
	dispatcher.Register(events.NewAuditLogger())

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()
		dispatcher.Register(events.NewKafkaPublisher(producer))
		log.Infow("Kafka audit stream enabled", "brokers", cfg.Kafka.Brokers)
	}

	if cfg.Telegram.Enabled() {
		notifier, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			log.Errorf("Telegram disabled: %v", err)
		} else {
			defer notifier.Close()
			dispatcher.Register(notifier)
			log.Info("Telegram notifications enabled")
		}
	}

	// Emergency controller
	var store emergency.Store
	if cfg.Redis.Enabled() {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		store = redis.NewEmergencyStore(redisClient)
	} else {
		log.Warn("Redis not configured, emergency state will not survive restarts")
	}

	controller := emergencyctl.NewController(emergencyctl.Thresholds{
		DailyLossLimit:     cfg.Breaker.DailyLossLimit,
		PositionLossLimit:  cfg.Breaker.PositionLossLimit,
		DailyDrawdownLimit: cfg.Breaker.DailyDrawdownLimit,
		AccountLossPct:     cfg.Breaker.AccountLossPct,
		Cooldown:           cfg.Breaker.Cooldown,
	}, broker, store, dispatcher)

	if err := controller.Restore(ctx); err != nil {
		log.Errorf("Failed to restore emergency state: %v", err)
	}

	// Decision chain
	gate, err := riskgate.New(riskgate.Limits{
		MaxPositionSize:  cfg.Risk.MaxPositionSize,
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		MaxPortfolioHeat: cfg.Risk.MaxPortfolioHeat,
		MaxDrawdownPct:   cfg.Risk.MaxDrawdownPct,
		MaxContracts:     cfg.Risk.MaxContracts,
	}, broker, controller, cfg.Monitor.TickInterval)
	if err != nil {
		log.Fatalf("Failed to create risk gate: %v", err)
	}

	weights, err := consensus.NewWeightTable(cfg.Agents.Weights())
	if err != nil {
		log.Fatalf("Failed to create weight table: %v", err)
	}

	params := filter.ParamsFor(cfg.Filter.Preset, filter.Params{
		MinPremium: cfg.Filter.MinPremium,
		MinDTE:     cfg.Filter.MinDTE,
		MinAskPct:  cfg.Filter.MinAskPct,
	})

	pipe := pipeline.New(
		feed,
		filter.New(params),
		synth.New(cfg.Trading.MaxRiskPerTrade),
		agents.NewPanel(feed, newsFeed(cfg, log), scorer(cfg, log)),
		consensus.NewEngine(weights),
		gate,
		dispatcher,
	)

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.Register(workers.NewIntakeWorker(pipe, cfg.Feed.PollInterval))
	scheduler.Register(workers.NewEmergencyMonitorWorker(controller, cfg.Monitor.TickInterval))
	scheduler.Register(workers.NewDailyResetWorker(cfg.Monitor.DailyResetInterval, feed))

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Addr, log)
	}

	log.Info("System initialized successfully")

	waitForShutdown(cancel, scheduler, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// newsFeed returns the news collaborator, nil when not configured
func newsFeed(cfg *config.Config, log *logger.Logger) domainsentiment.Feed {
	if !cfg.News.Enabled() {
		log.Warn("News feed not configured, sentiment agent runs without headlines")
		return nil
	}
	return newswire.NewClient(newswire.Config{
		BaseURL: cfg.News.BaseURL,
		APIKey:  cfg.News.APIKey,
		Timeout: cfg.News.Timeout,
	})
}

// scorer returns the LLM sentiment scorer, nil when not configured
func scorer(cfg *config.Config, log *logger.Logger) domainsentiment.Scorer {
	if cfg.LLM.OpenAIKey == "" {
		log.Warn("LLM not configured, sentiment agent uses the keyword heuristic")
		return nil
	}
	s, err := llm.NewOpenAIScorer(cfg.LLM.OpenAIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	if err != nil {
		log.Errorf("LLM scorer disabled: %v", err)
		return nil
	}
	return s
}

func startMetricsServer(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
}

func waitForShutdown(cancel context.CancelFunc, scheduler *workers.Scheduler, tracker errors.Tracker, log *logger.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig

	log.Infof("Received signal %s, shutting down", s)
	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Errorf("Scheduler shutdown: %v", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorf("Error tracker flush: %v", err)
	}

	log.Info("Shutdown complete")
}
