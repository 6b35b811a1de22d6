package fetcher

import (
	"time"

	"github.com/aluiziolira/go-price-watch/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fetch client.
type Metrics struct {
	AttemptsTotal    *prometheus.CounterVec
	AttemptDuration  prometheus.Histogram
	RetriesTotal     prometheus.Counter
	EscalationsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
}

// NewMetrics constructs the fetch collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_attempts_total",
			Help: "Fetch attempts issued through the proxy service, by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricewatch_fetch_duration_seconds",
			Help:    "Latency of a single fetch attempt.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	escalations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_escalations_total",
			Help: "Tier escalations, by the tier escalated to.",
		},
		[]string{"tier"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)

	if reg != nil {
		reg.MustRegister(attempts, duration, retries, escalations, errorsTotal)
	}

	return &Metrics{
		AttemptsTotal:    attempts,
		AttemptDuration:  duration,
		RetriesTotal:     retries,
		EscalationsTotal: escalations,
		ErrorsTotal:      errorsTotal,
	}
}

// ObserveAttempt records one attempt's tier, outcome and latency.
func (m *Metrics) ObserveAttempt(tier models.Tier, outcome models.Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(tier.String(), outcome.String()).Inc()
	m.AttemptDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncEscalation records a move up to tier.
func (m *Metrics) IncEscalation(tier models.Tier) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(tier.String()).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
