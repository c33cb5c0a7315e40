package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus side of the metrics surface, served alongside
// the in-process percentile ring (Metrics/TradeTimer above) at the control
// API's /metrics endpoint. ObserveTradeLatency feeds both: the histogram
// for external histogram_quantile queries, and the ring for the exact
// p50/p90/p99 gauges the control API exposes directly.
type Registry struct {
	reg  *prometheus.Registry
	ring *Metrics

	TradesTotal       *prometheus.CounterVec
	TradeLatencySec   *prometheus.HistogramVec
	TradeLatencyP50Ms prometheus.Gauge
	TradeLatencyP90Ms prometheus.Gauge
	TradeLatencyP99Ms prometheus.Gauge
	FeeMicroLamports  prometheus.Gauge
	CongestionLevel   *prometheus.GaugeVec
	PositionsOpen     prometheus.Gauge
	RealizedPnLQuote  prometheus.Counter
	RiskBlocksTotal   *prometheus.CounterVec
	AutoPauseActive   prometheus.Gauge
	RPCLatencyMs      *prometheus.GaugeVec
}

// NewRegistry builds and registers the sniper's Prometheus collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg:  reg,
		ring: NewMetrics(),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_trades_total",
			Help: "Total executed trades by side and outcome.",
		}, []string{"side", "outcome"}),
		TradeLatencySec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sniper_trade_latency_seconds",
			Help:    "End-to-end trade latency by execution path.",
			Buckets: []float64{.05, .1, .2, .3, .5, .75, 1, 1.5, 2, 3, 5},
		}, []string{"path"}),
		TradeLatencyP50Ms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_trade_latency_p50_ms",
			Help: "50th percentile trade latency over the last 100 trades, in milliseconds.",
		}),
		TradeLatencyP90Ms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_trade_latency_p90_ms",
			Help: "90th percentile trade latency over the last 100 trades, in milliseconds.",
		}),
		TradeLatencyP99Ms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_trade_latency_p99_ms",
			Help: "99th percentile trade latency over the last 100 trades, in milliseconds.",
		}),
		FeeMicroLamports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_fee_microlamports",
			Help: "Current priority fee in microlamports-per-compute-unit.",
		}),
		CongestionLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sniper_congestion_level",
			Help: "1 if the network is currently at this congestion tier, else 0.",
		}, []string{"level"}),
		PositionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_positions_open",
			Help: "Number of currently open positions.",
		}),
		RealizedPnLQuote: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_realized_pnl_quote_total",
			Help: "Cumulative realized PnL in quote currency units.",
		}),
		RiskBlocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_risk_blocks_total",
			Help: "Candidates rejected by the risk gate, by check name.",
		}, []string{"check"}),
		AutoPauseActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_auto_pause_active",
			Help: "1 if trading is currently auto-paused, else 0.",
		}),
		RPCLatencyMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sniper_rpc_latency_ms",
			Help: "Observed RPC endpoint latency in milliseconds.",
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		r.TradesTotal, r.TradeLatencySec,
		r.TradeLatencyP50Ms, r.TradeLatencyP90Ms, r.TradeLatencyP99Ms,
		r.FeeMicroLamports, r.CongestionLevel,
		r.PositionsOpen, r.RealizedPnLQuote, r.RiskBlocksTotal, r.AutoPauseActive,
		r.RPCLatencyMs,
	)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for wiring into an
// HTTP handler (promhttp.HandlerFor).
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Observe satisfies chain.LatencySink, recording one RPC round trip's
// latency against the endpoint ("primary" or "fallback") that served it.
func (r *Registry) Observe(endpoint string, ms float64) {
	r.RPCLatencyMs.WithLabelValues(endpoint).Set(ms)
}

// ObserveTradeLatency records one trade's end-to-end latency against the
// Prometheus histogram and the in-process percentile ring, updating the
// ring's exported gauges in the same call.
func (r *Registry) ObserveTradeLatency(path string, elapsed time.Duration) {
	r.TradeLatencySec.WithLabelValues(path).Observe(elapsed.Seconds())
	r.ring.RecordLatency(elapsed.Milliseconds())
	r.TradeLatencyP50Ms.Set(float64(r.ring.P50()))
	r.TradeLatencyP90Ms.Set(float64(r.ring.P90()))
	r.TradeLatencyP99Ms.Set(float64(r.ring.P99()))
}
