package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WagersPlaced counts wagers recorded as pending
	WagersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "wagers_placed_total",
		Help:      "Wagers recorded as pending.",
	}, []string{LabelGameType})

	// WagersSettled counts terminal wager transitions
	WagersSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "wagers_settled_total",
		Help:      "Wagers that reached a terminal status.",
	}, []string{LabelGameType, LabelStatus})

	// StakeVolume sums stakes of resolved wagers in minor units
	StakeVolume = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "stake_minor_units_total",
		Help:      "Stake volume of resolved wagers in minor units.",
	}, []string{LabelGameType})

	// PayoutVolume sums payouts of resolved wagers in minor units
	PayoutVolume = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "payout_minor_units_total",
		Help:      "Payout volume of resolved wagers in minor units.",
	}, []string{LabelGameType})

	// RoundsEnded counts closed game rounds
	RoundsEnded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "rounds_ended_total",
		Help:      "Game rounds that ended, voided or not.",
	}, []string{LabelGameType, LabelResult})

	// EventsPublished counts bus publishes by outcome
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "events_published_total",
		Help:      "Domain events handed to the event bus.",
	}, []string{LabelEventType, LabelResult})

	// WorkerRuns counts background sweep iterations
	WorkerRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "worker_runs_total",
		Help:      "Background worker iterations.",
	}, []string{LabelWorker, LabelResult})

	// WorkerItems counts records handled by background sweeps
	WorkerItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "worker_items_total",
		Help:      "Records handled by background workers.",
	}, []string{LabelWorker})

	// HTTPRequests counts API requests by route and status code
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "http_requests_total",
		Help:      "API requests.",
	}, []string{LabelMethod, LabelRoute, LabelStatus})

	// HTTPDuration observes API latency
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricPrefix,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{LabelMethod, LabelRoute})

	// APIErrors counts error responses by code
	APIErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricPrefix,
		Name:      "api_errors_total",
		Help:      "Error responses by error code.",
	}, []string{LabelCode})

	// WebSocketConnections tracks open push connections
	WebSocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricPrefix,
		Name:      "websocket_connections",
		Help:      "Open WebSocket push connections.",
	})
)

func init() {
	prometheus.MustRegister(
		WagersPlaced,
		WagersSettled,
		StakeVolume,
		PayoutVolume,
		RoundsEnded,
		EventsPublished,
		WorkerRuns,
		WorkerItems,
		HTTPRequests,
		HTTPDuration,
		APIErrors,
		WebSocketConnections,
	)
}
