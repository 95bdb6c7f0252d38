// Package monitoring exposes gateway metrics in the Prometheus format.
//
// Metrics live on a private registry rather than the global default, so
// several servers (and tests) can run in one process.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Outcome labels for RecordRequest.
const (
	OutcomePage      = "page"
	OutcomeCached    = "cached"
	OutcomeJSON      = "json"
	OutcomeJSONError = "json_error"
	OutcomeRaw       = "raw"
	OutcomeRedirect  = "redirect"
	OutcomeStatic    = "static"
	OutcomeNotFound  = "not_found"
	OutcomeUpgrade   = "upgrade"
)

// Metrics holds the gateway's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	routeErrors   *prometheus.CounterVec
	panics        prometheus.Counter
	sockets       prometheus.Gauge
	reloads       prometheus.Counter
	routesLoaded  prometheus.Gauge
	pagesRendered prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// requests counts answered HTTP requests.
		// Labels: outcome (page, cached, json, json_error, raw, redirect, static, not_found, upgrade)
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by dispatch outcome",
		}, []string{"outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time from request to response by dispatch outcome",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"outcome"}),

		// routeErrors counts classified Data errors.
		// Labels: kind (validation, redirect, generic, type_mismatch)
		routeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "route",
			Name:      "errors_total",
			Help:      "Route data errors by classification",
		}, []string{"kind"}),

		panics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "route",
			Name:      "panics_total",
			Help:      "Panics recovered from route callbacks",
		}),

		sockets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections",
			Help:      "Open WebSocket connections",
		}),

		reloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dev",
			Name:      "reload_broadcasts_total",
			Help:      "Live-reload broadcasts sent to browsers",
		}),

		routesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "route",
			Name:      "loaded",
			Help:      "Routes in the loaded route table",
		}),

		pagesRendered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "pages_rendered_total",
			Help:      "Pages written by static pre-rendering",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest counts a request and observes its duration.
func (m *Metrics) RecordRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordRouteError counts a classified route error.
func (m *Metrics) RecordRouteError(kind string) {
	if m == nil {
		return
	}
	m.routeErrors.WithLabelValues(kind).Inc()
}

// RecordPanic counts a recovered panic.
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

// SocketOpened and SocketClosed track open WebSocket connections.
func (m *Metrics) SocketOpened() {
	if m == nil {
		return
	}
	m.sockets.Inc()
}

func (m *Metrics) SocketClosed() {
	if m == nil {
		return
	}
	m.sockets.Dec()
}

// RecordReload counts a live-reload broadcast.
func (m *Metrics) RecordReload() {
	if m == nil {
		return
	}
	m.reloads.Inc()
}

// SetRoutesLoaded records the size of the route table.
func (m *Metrics) SetRoutesLoaded(n int) {
	if m == nil {
		return
	}
	m.routesLoaded.Set(float64(n))
}

// RecordPageRendered counts a pre-rendered page.
func (m *Metrics) RecordPageRendered() {
	if m == nil {
		return
	}
	m.pagesRendered.Inc()
}
