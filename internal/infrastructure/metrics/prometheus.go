// Package metrics exposes analysis and provider measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gap_service/internal/core"
)

const namespace = "gap"

var (
	analysisDurationBuckets = []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	httpDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
)

// Prometheus implements core.Recorder on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	pages            *prometheus.CounterVec
	discarded        *prometheus.CounterVec
	retries          *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

var _ core.Recorder = (*Prometheus)(nil)

// NewPrometheus registers all collectors. withRuntime adds the Go and process
// collectors, which tests leave out.
func NewPrometheus(withRuntime bool) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "pages_total",
			Help:      "Provider page requests by outcome.",
		}, []string{"provider", "category", "outcome"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "discarded_places_total",
			Help:      "Places dropped while fetching, by reason.",
		}, []string{"provider", "reason"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Page requests retried after a transport failure.",
		}, []string{"provider"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Wall time of a domain analysis.",
			Buckets:   analysisDurationBuckets,
		}, []string{"domain", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   httpDurationBuckets,
		}, []string{"method", "route"}),
	}

	p.registry.MustRegister(p.pages, p.discarded, p.retries, p.analysisDuration, p.httpRequests, p.httpDuration)
	if withRuntime {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		)
	}
	return p
}

func (p *Prometheus) ObservePage(provider, category, outcome string) {
	p.pages.WithLabelValues(provider, category, outcome).Inc()
}

func (p *Prometheus) ObserveDiscarded(provider, reason string, n int) {
	if n <= 0 {
		return
	}
	p.discarded.WithLabelValues(provider, reason).Add(float64(n))
}

func (p *Prometheus) ObserveRetry(provider string) {
	p.retries.WithLabelValues(provider).Inc()
}

func (p *Prometheus) ObserveAnalysis(domain, outcome string, d time.Duration) {
	p.analysisDuration.WithLabelValues(domain, outcome).Observe(d.Seconds())
}

// ObserveHTTP records one served request. route is the registered pattern,
// not the raw path.
func (p *Prometheus) ObserveHTTP(method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }
