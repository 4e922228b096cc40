package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Alert filter metrics
	AlertsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_alerts_received_total",
			Help: "Total raw alerts received from the flow feed",
		},
	)

	AlertsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_alerts_accepted_total",
			Help: "Total alerts surviving the filter rules",
		},
	)

	AlertsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_alerts_rejected_total",
			Help: "Total alerts dropped by filter rules",
		},
		[]string{"rule"},
	)

	AlertsMalformed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_alerts_malformed_total",
			Help: "Total structurally broken alerts dropped",
		},
	)

	// Agent panel metrics
	OpinionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_agent_opinions_total",
			Help: "Total opinions produced by panel agents",
		},
		[]string{"agent", "action"},
	)

	AgentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_agent_failures_total",
			Help: "Total agent analysis failures (errors and panics)",
		},
		[]string{"agent"},
	)

	// Consensus metrics
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_decisions_total",
			Help: "Total consensus decisions by chosen action",
		},
		[]string{"action"},
	)

	HumanApprovals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_decisions_human_approval_total",
			Help: "Total decisions flagged for mandatory human sign-off",
		},
	)

	ConsensusScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helios_consensus_score",
			Help:    "Distribution of consensus scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	// Risk gate metrics
	RiskRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_risk_rejections_total",
			Help: "Total risk gate rejections by primary reason",
		},
		[]string{"reason"},
	)

	// Emergency controller metrics
	EmergencyLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "helios_emergency_level",
			Help: "Current emergency level (0=normal 1=breaker 2=stop 3=kill)",
		},
	)

	CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_circuit_breaker_trips_total",
			Help: "Total circuit breaker activations",
		},
		[]string{"reason"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helios_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)
)

// Init registers all metrics with the default registry
func Init() {
	prometheus.MustRegister(AlertsReceived)
	prometheus.MustRegister(AlertsAccepted)
	prometheus.MustRegister(AlertsRejected)
	prometheus.MustRegister(AlertsMalformed)

	prometheus.MustRegister(OpinionsTotal)
	prometheus.MustRegister(AgentFailures)

	prometheus.MustRegister(DecisionsTotal)
	prometheus.MustRegister(HumanApprovals)
	prometheus.MustRegister(ConsensusScore)

	prometheus.MustRegister(RiskRejections)

	prometheus.MustRegister(EmergencyLevel)
	prometheus.MustRegister(CircuitBreakerTrips)

	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records one worker run
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}
