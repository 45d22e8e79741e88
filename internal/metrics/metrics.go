package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	signalsGenerated *prometheus.CounterVec
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesExecuted   *prometheus.CounterVec
	finalValue       prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		signalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gotothemoon_signals_generated_total",
				Help: "Total number of signals generated",
			},
			[]string{"strategy", "signal"},
		),
		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gotothemoon_backtests_total",
				Help: "Total number of backtests",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gotothemoon_backtest_duration_seconds",
				Help:    "Backtest duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),
		tradesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gotothemoon_trades_executed_total",
				Help: "Total number of simulated trades executed",
			},
			[]string{"side"},
		),
		finalValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gotothemoon_final_portfolio_value",
				Help: "Final portfolio value of the most recent backtest",
			},
		),
	}

	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesExecuted)
	reg.MustRegister(r.finalValue)

	return r
}

// RecordSignal records a generated signal.
func (r *Registry) RecordSignal(strategy, signal string) {
	r.signalsGenerated.WithLabelValues(strategy, signal).Inc()
}

// RecordBacktest records a completed backtest and its duration.
func (r *Registry) RecordBacktest(status string, seconds float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(seconds)
}

// RecordTrade records an executed trade.
func (r *Registry) RecordTrade(side string) {
	r.tradesExecuted.WithLabelValues(side).Inc()
}

// SetFinalValue records the final portfolio value of a run.
func (r *Registry) SetFinalValue(v float64) {
	r.finalValue.Set(v)
}

// Handler returns an HTTP handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}
