// Package metrics provides the Prometheus implementation of core.Metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "palletload"

// PrometheusCollector implements core.Metrics backed by Prometheus.
//
// Collectors are created and registered on first use, so constructing one is
// free and registration errors surface where metrics are first recorded.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	inserted      prometheus.Counter
	dropped       *prometheus.CounterVec
	palletsMinted prometheus.Counter
	openPallets   *prometheus.GaugeVec
}

// Compile-time assertion that PrometheusCollector implements core.Metrics.
var _ core.Metrics = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: metrics namespace (defaults to "palletload" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Import runs by outcome (success, dry_run or the failing phase).",
		}, []string{"outcome"})

		p.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "import",
			Name:      "run_duration_seconds",
			Help:      "Wall time of import runs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~100s
		})

		p.inserted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "import",
			Name:      "parcels_inserted_total",
			Help:      "Parcel rows inserted into the store.",
		})

		p.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "import",
			Name:      "parcels_dropped_total",
			Help:      "Input rows not inserted, by reason (duplicate_in_batch, already_known, blank_key).",
		}, []string{"reason"})

		p.palletsMinted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocator",
			Name:      "pallets_minted_total",
			Help:      "Pallet ids issued.",
		})

		p.openPallets = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "allocator",
			Name:      "open_pallets",
			Help:      "Pallets below capacity after the last run, by country.",
		}, []string{"country"})

		p.reg.MustRegister(p.runs)
		p.reg.MustRegister(p.runDuration)
		p.reg.MustRegister(p.inserted)
		p.reg.MustRegister(p.dropped)
		p.reg.MustRegister(p.palletsMinted)
		p.reg.MustRegister(p.openPallets)
	})
}

// RecordRun counts a finished run and observes its duration.
func (p *PrometheusCollector) RecordRun(outcome string, seconds float64) {
	p.ensureRegistered()
	p.runs.WithLabelValues(outcome).Inc()
	p.runDuration.Observe(seconds)
}

// RecordParcels adds inserted parcels and dropped rows by reason.
func (p *PrometheusCollector) RecordParcels(inserted int, dropped map[string]int) {
	p.ensureRegistered()
	p.inserted.Add(float64(inserted))
	for reason, n := range dropped {
		p.dropped.WithLabelValues(reason).Add(float64(n))
	}
}

func (p *PrometheusCollector) RecordPalletsMinted(n int) {
	p.ensureRegistered()
	p.palletsMinted.Add(float64(n))
}

// SetOpenPallets replaces the per-country gauge. Countries missing from
// byCountry are removed rather than left at a stale value.
func (p *PrometheusCollector) SetOpenPallets(byCountry map[string]int) {
	p.ensureRegistered()
	p.openPallets.Reset()
	for country, n := range byCountry {
		p.openPallets.WithLabelValues(country).Set(float64(n))
	}
}

// Handler returns the HTTP handler exposing the metrics of g.
// A nil gatherer uses prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
