// Package metrics exposes Prometheus counters for harvests, checks, index
// writes and searches on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
)

const namespace = "georegistry"

// Metrics holds the collectors. The zero value is not usable; use New.
type Metrics struct {
	reg *prometheus.Registry

	harvests      *prometheus.CounterVec
	harvestTime   *prometheus.HistogramVec
	checks        *prometheus.CounterVec
	indexed       *prometheus.CounterVec
	searches      *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec
}

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvests_total",
			Help:      "Service harvests by service type and result.",
		}, []string{"type", "result"}),
		harvestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "harvest_duration_seconds",
			Help:      "Duration of service harvests.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"type"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Availability checks by resource kind and result.",
		}, []string{"kind", "result"}),
		indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_documents_total",
			Help:      "Layer documents sent to a search engine, by result.",
		}, []string{"engine", "result"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search API requests by engine and HTTP status.",
		}, []string{"engine", "status"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search API latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
	}
	m.reg.MustRegister(
		m.harvests, m.harvestTime, m.checks, m.indexed, m.searches, m.searchLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveHarvest(serviceType string, ok bool, elapsed time.Duration) {
	m.harvests.WithLabelValues(serviceType, result(ok)).Inc()
	m.harvestTime.WithLabelValues(serviceType).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCheck(kind domain.ResourceKind, ok bool, _ time.Duration) {
	m.checks.WithLabelValues(string(kind), result(ok)).Inc()
}

// ObserveIndex counts n documents. Zero counts are dropped.
func (m *Metrics) ObserveIndex(engine, res string, n int) {
	if n <= 0 {
		return
	}
	m.indexed.WithLabelValues(engine, res).Add(float64(n))
}

func (m *Metrics) ObserveSearch(engine string, status int, elapsed time.Duration) {
	m.searches.WithLabelValues(engine, strconv.Itoa(status)).Inc()
	m.searchLatency.WithLabelValues(engine).Observe(elapsed.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
