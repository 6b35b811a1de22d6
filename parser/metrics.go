package parser

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for extraction.
type Metrics struct {
	StrategyTotal *prometheus.CounterVec
	SkippedTotal  *prometheus.CounterVec
}

// NewMetrics constructs the extraction collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	strategy := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_extraction_strategy_total",
			Help: "Documents by the extraction strategy that produced candidates.",
		},
		[]string{"strategy"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_extraction_skipped_rows_total",
			Help: "Rows or records skipped for lacking a name or a valid price.",
		},
		[]string{"strategy"},
	)
	if reg != nil {
		reg.MustRegister(strategy, skipped)
	}
	return &Metrics{StrategyTotal: strategy, SkippedTotal: skipped}
}

// IncStrategy records which strategy won a document.
func (m *Metrics) IncStrategy(name string) {
	if m == nil {
		return
	}
	m.StrategyTotal.WithLabelValues(name).Inc()
}

// AddSkipped adds n skipped rows for a strategy.
func (m *Metrics) AddSkipped(name string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SkippedTotal.WithLabelValues(name).Add(float64(n))
}
