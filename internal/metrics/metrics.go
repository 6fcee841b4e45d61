// Package metrics exposes the trading core's Prometheus metrics: order
// submission latency, rejection counts, fill rate, and per-strategy
// exposure gauges (spec §4.5, §6).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every collector the trading core emits. A single instance
// is constructed at process start; the execution engine reaches it through
// an ExecutionSink. Nothing in the module sets KillSwitchActive or
// StrategyExposure.
type Registry struct {
	registry *prometheus.Registry

	OrdersSubmitted   *prometheus.CounterVec
	OrdersRejected    *prometheus.CounterVec
	SubmitLatency     *prometheus.HistogramVec
	FillsRecorded     *prometheus.CounterVec
	RateLimiterWaits  *prometheus.CounterVec
	KillSwitchActive  *prometheus.GaugeVec
	StrategyExposure  *prometheus.GaugeVec
}

// NewRegistry constructs and registers every collector.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exec_orders_submitted_total",
			Help: "Total orders submitted to the execution engine, by venue.",
		}, []string{"venue"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exec_orders_rejected_total",
			Help: "Total orders rejected or cancelled, by venue and kind (cancellations use kind \"cancelled\").",
		}, []string{"venue", "kind"}),
		SubmitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exec_submit_latency_seconds",
			Help:    "Latency from SubmitOrder call to adapter acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"venue"}),
		FillsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exec_fills_recorded_total",
			Help: "Total orders that reached Filled, by venue; liquidity is recorded as \"unknown\".",
		}, []string{"venue", "liquidity"}),
		RateLimiterWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exec_rate_limiter_waits_total",
			Help: "Total times a submission blocked on a venue's rate limiter.",
		}, []string{"venue"}),
		KillSwitchActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "risk_kill_switch_active",
			Help: "1 if the risk engine's kill switch is engaged, else 0.",
		}, []string{"engine"}),
		StrategyExposure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strategy_market_exposure",
			Help: "Signed position size per market, aggregated across strategies.",
		}, []string{"market"}),
	}

	reg.MustRegister(
		r.OrdersSubmitted,
		r.OrdersRejected,
		r.SubmitLatency,
		r.FillsRecorded,
		r.RateLimiterWaits,
		r.KillSwitchActive,
		r.StrategyExposure,
	)
	return r
}

// Handler returns the HTTP handler to mount at the configured metrics path.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
