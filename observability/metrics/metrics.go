// Package metrics exposes the pool's Prometheus instrumentation: reserve
// utilization, auction fills, backstop credit, and bad-debt defaults.
// Grounded on observability/metrics.go's lazily-initialized CounterVec/
// GaugeVec registry idiom, narrowed from RPC-module metrics to the pool's
// own domain events.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics is the lazily-initialized registry of pool-domain gauges and
// counters.
type PoolMetrics struct {
	reserveUtilization *prometheus.GaugeVec
	backstopCredit     *prometheus.GaugeVec
	auctionsCreated    *prometheus.CounterVec
	auctionsFilled     *prometheus.CounterVec
	auctionsDeleted    *prometheus.CounterVec
	badDebtDefaults    *prometheus.CounterVec
	emissionsClaimed   *prometheus.CounterVec
	requestsRejected   *prometheus.CounterVec
}

var (
	once     sync.Once
	registry *PoolMetrics
)

// Registry returns the process-wide pool metrics registry, registering its
// collectors with the default Prometheus registerer on first use.
func Registry() *PoolMetrics {
	once.Do(func() {
		registry = &PoolMetrics{
			reserveUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendcore",
				Subsystem: "reserve",
				Name:      "utilization_ratio",
				Help:      "Current reserve utilization (7-dec ratio expressed as a float) by reserve index.",
			}, []string{"reserve"}),
			backstopCredit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendcore",
				Subsystem: "reserve",
				Name:      "backstop_credit_underlying",
				Help:      "Underlying-unit backstop credit accumulated per reserve.",
			}, []string{"reserve"}),
			auctionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendcore",
				Subsystem: "auction",
				Name:      "created_total",
				Help:      "Auctions created, by variant.",
			}, []string{"kind"}),
			auctionsFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendcore",
				Subsystem: "auction",
				Name:      "filled_total",
				Help:      "Auction fill requests processed, by variant and outcome.",
			}, []string{"kind", "outcome"}),
			auctionsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendcore",
				Subsystem: "auction",
				Name:      "deleted_stale_total",
				Help:      "Auctions removed for exceeding the stale-age threshold.",
			}, []string{"kind"}),
			badDebtDefaults: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendcore",
				Subsystem: "baddebt",
				Name:      "defaults_total",
				Help:      "Backstop default write-downs, by reserve.",
			}, []string{"reserve"}),
			emissionsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendcore",
				Subsystem: "emissions",
				Name:      "claimed_total",
				Help:      "Emissions claim calls, by reserve and side.",
			}, []string{"reserve", "side"}),
			requestsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendcore",
				Subsystem: "requestpipeline",
				Name:      "rejected_total",
				Help:      "Submit() batches rejected, by reason code.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			registry.reserveUtilization,
			registry.backstopCredit,
			registry.auctionsCreated,
			registry.auctionsFilled,
			registry.auctionsDeleted,
			registry.badDebtDefaults,
			registry.emissionsClaimed,
			registry.requestsRejected,
		)
	})
	return registry
}

func (m *PoolMetrics) SetReserveUtilization(reserve string, ratio float64) {
	if m == nil {
		return
	}
	m.reserveUtilization.WithLabelValues(reserve).Set(ratio)
}

func (m *PoolMetrics) SetBackstopCredit(reserve string, underlying float64) {
	if m == nil {
		return
	}
	m.backstopCredit.WithLabelValues(reserve).Set(underlying)
}

func (m *PoolMetrics) ObserveAuctionCreated(kind string) {
	if m == nil {
		return
	}
	m.auctionsCreated.WithLabelValues(kind).Inc()
}

func (m *PoolMetrics) ObserveAuctionFilled(kind, outcome string) {
	if m == nil {
		return
	}
	m.auctionsFilled.WithLabelValues(kind, outcome).Inc()
}

func (m *PoolMetrics) ObserveAuctionDeletedStale(kind string) {
	if m == nil {
		return
	}
	m.auctionsDeleted.WithLabelValues(kind).Inc()
}

func (m *PoolMetrics) ObserveBadDebtDefault(reserve string) {
	if m == nil {
		return
	}
	m.badDebtDefaults.WithLabelValues(reserve).Inc()
}

func (m *PoolMetrics) ObserveEmissionsClaimed(reserve, side string) {
	if m == nil {
		return
	}
	m.emissionsClaimed.WithLabelValues(reserve, side).Inc()
}

func (m *PoolMetrics) ObserveRequestRejected(reason string) {
	if m == nil {
		return
	}
	m.requestsRejected.WithLabelValues(reason).Inc()
}
