// Package metrics holds the Prometheus collectors shared by the HTTP services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	outcomes  *prometheus.CounterVec
	upstreams *prometheus.HistogramVec
}

// New registers the HTTP collectors on a private registry labelled with service.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "decentrahub",
			Name:        "http_requests_total",
			Help:        "HTTP requests by method, route and status.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "decentrahub",
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by method and route.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "decentrahub",
			Name:        "http_requests_in_flight",
			Help:        "HTTP requests currently being served.",
			ConstLabels: constLabels,
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "decentrahub",
			Name:        "operations_total",
			Help:        "Domain operations by name and outcome.",
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		upstreams: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "decentrahub",
			Name:        "upstream_duration_seconds",
			Help:        "Latency of calls to external systems.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"upstream", "outcome"}),
	}

	reg.MustRegister(
		m.requests, m.duration, m.inFlight, m.outcomes, m.upstreams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	m.requests.WithLabelValues(method, route, status).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) TrackInFlight() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// Outcome counts one run of a domain operation such as "verify" or "mint".
func (m *Metrics) Outcome(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.outcomes.WithLabelValues(operation, outcome).Inc()
}

// ObserveUpstream records the latency of a call to upstream, e.g. "lens" or "pinata".
func (m *Metrics) ObserveUpstream(upstream string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreams.WithLabelValues(upstream, outcome).Observe(time.Since(start).Seconds())
}
