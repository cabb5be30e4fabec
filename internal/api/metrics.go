package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics owns a private registry so several servers (and tests) can coexist
// in one process
type Metrics struct {
	Registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	engineCalls *prometheus.CounterVec
	intents     *prometheus.CounterVec
	evaluations prometheus.Histogram
}

// NewMetrics registers the HTTP and engine collectors plus the Go runtime
// and process collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warpmine",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warpmine",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		engineCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warpmine",
			Name:      "engine_calls_total",
			Help:      "Engine invocations by outcome.",
		}, []string{"engine", "outcome"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warpmine",
			Name:      "chat_intents_total",
			Help:      "Chat requests by classified intent.",
		}, []string{"intent"}),
		evaluations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "warpmine",
			Name:      "optimization_evaluations",
			Help:      "Objective evaluations per optimization run.",
			Buckets:   prometheus.ExponentialBuckets(50, 2, 10),
		}),
	}
	m.Registry.MustRegister(
		m.requests, m.latency, m.engineCalls, m.intents, m.evaluations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) engine(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.engineCalls.WithLabelValues(name, outcome).Inc()
}
