package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consumer outcomes
const (
	OutcomeApplied     = "applied"
	OutcomeDuplicate   = "duplicate"
	OutcomeDecodeError = "decode_error"
	OutcomeStoreError  = "store_error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Consumer metrics
	ConsumerMessages   *prometheus.CounterVec
	ConsumerProcessing prometheus.Histogram

	// Broker metrics
	ConnectAttempts *prometheus.CounterVec
	ConnectionState prometheus.Gauge

	// Balance metrics
	DailyBalance  *prometheus.GaugeVec
	BalanceErrors *prometheus.CounterVec

	// Launch metrics
	TransactionsCreated *prometheus.CounterVec
	OutboxPublished     *prometheus.CounterVec

	// Report metrics
	ReportCache *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

// New creates and registers all Prometheus metrics on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Consumer metrics
		ConsumerMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_consumer_messages_total",
				Help: "Total consumed transaction events by outcome",
			},
			[]string{"outcome"},
		),
		ConsumerProcessing: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashflow_consumer_processing_seconds",
			Help:    "Time spent handling one delivery",
			Buckets: prometheus.DefBuckets,
		}),

		// Broker metrics
		ConnectAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_rabbitmq_connect_attempts_total",
				Help: "Total RabbitMQ connection attempts by result",
			},
			[]string{"result"},
		),
		ConnectionState: f.NewGauge(prometheus.GaugeOpts{
			Name: "cashflow_rabbitmq_connection_state",
			Help: "Connection manager state (0 disconnected, 1 connecting, 2 connected, 3 aborted)",
		}),

		// Balance metrics
		DailyBalance: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cashflow_daily_balance",
				Help: "Last persisted consolidated balance per day",
			},
			[]string{"date"},
		),
		BalanceErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_balance_errors_total",
				Help: "Total balance store failures by operation",
			},
			[]string{"operation"},
		),

		// Launch metrics
		TransactionsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_transactions_created_total",
				Help: "Total transactions recorded by type",
			},
			[]string{"type"},
		),
		OutboxPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_outbox_published_total",
				Help: "Total outbox events relayed by result",
			},
			[]string{"result"},
		),

		// Report metrics
		ReportCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_report_cache_total",
				Help: "Report cache lookups by result",
			},
			[]string{"result"},
		),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashflow_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "cashflow_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
	}
}

// ObserveMessage records one handled delivery.
func (m *Metrics) ObserveMessage(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ConsumerMessages.WithLabelValues(outcome).Inc()
	m.ConsumerProcessing.Observe(elapsed.Seconds())
}

// SetDailyBalance publishes the balance of the given day.
func (m *Metrics) SetDailyBalance(date time.Time, balance float64) {
	if m == nil {
		return
	}
	m.DailyBalance.WithLabelValues(date.UTC().Format(time.DateOnly)).Set(balance)
}
