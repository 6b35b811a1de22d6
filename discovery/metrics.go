package discovery

import "github.com/prometheus/client_golang/prometheus"

// Run outcomes.
const (
	OutcomeWinner   = "winner"
	OutcomeNoWinner = "no_winner"
)

// Metrics bundles run-level collectors.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	SourceCandidates *prometheus.GaugeVec
	WinnerPrice      prometheus.Gauge
	AveragePrice     prometheus.Gauge
	HistorySamples   prometheus.Gauge
	PersistErrors    prometheus.Counter
	NotifyErrors     prometheus.Counter
}

// NewMetrics constructs the run collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_runs_total",
			Help: "Discovery runs by outcome.",
		}, []string{"outcome"}),
		SourceCandidates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricewatch_source_candidates",
			Help: "Candidates that passed filtering, per source, in the last run.",
		}, []string{"source"}),
		WinnerPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_winner_price",
			Help: "Price of the last winning candidate.",
		}),
		AveragePrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_average_price",
			Help: "Mean of the retained history after the last run.",
		}),
		HistorySamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_history_samples",
			Help: "Entries in the price history after the last run.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_history_persist_errors_total",
			Help: "Failed history saves.",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_notify_errors_total",
			Help: "Failed notifications.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RunsTotal, m.SourceCandidates, m.WinnerPrice, m.AveragePrice, m.HistorySamples, m.PersistErrors, m.NotifyErrors)
	}
	return m
}
