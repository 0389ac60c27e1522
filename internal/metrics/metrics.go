// Package metrics exposes process counters/gauges/histograms for the
// matching engine and trade log, scraped by internal/adminhttp's
// /metrics endpoint (spec.md §12 "admin/ops HTTP surface").
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every exported collector.
type Metrics struct {
	TradesTotal      prometheus.Counter
	OrdersTotal      *prometheus.CounterVec
	MatchingLatency  prometheus.Histogram
	BidDepth         prometheus.Gauge
	AskDepth         prometheus.Gauge
	TradeLogFailures prometheus.Counter
}

// New creates and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossx_trades_total",
			Help: "Total number of executed trades.",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crossx_orders_total",
			Help: "Total number of order operations, labeled by kind and outcome.",
		}, []string{"kind", "outcome"}),
		MatchingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crossx_matching_session_seconds",
			Help:    "Duration of one matchingLock-held session.",
			Buckets: prometheus.DefBuckets,
		}),
		BidDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crossx_book_bid_depth",
			Help: "Total remaining size resting on the bid side.",
		}),
		AskDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crossx_book_ask_depth",
			Help: "Total remaining size resting on the ask side.",
		}),
		TradeLogFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossx_tradelog_flush_failures_total",
			Help: "Total number of trade log flush failures.",
		}),
	}

	reg.MustRegister(m.TradesTotal, m.OrdersTotal, m.MatchingLatency, m.BidDepth, m.AskDepth, m.TradeLogFailures)
	return m
}
