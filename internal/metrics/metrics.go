// Package metrics exposes Prometheus counters and histograms for classification,
// provider fetches and the HTTP API. Each Recorder owns its registry so tests and
// multiple servers in one process never collide on registration.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/unclutter/internal/model"
)

const namespace = "unclutter"

// Recorder holds the application's collectors.
type Recorder struct {
	registry            *prometheus.Registry
	messagesClassified  *prometheus.CounterVec
	providerFetchErrors *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates a Recorder with a fresh registry. Go runtime and process collectors are
// included so /metrics is useful on its own.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		messagesClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_classified_total",
				Help:      "Total number of messages classified, by category",
			},
			[]string{"category"},
		),
		providerFetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fetch_errors_total",
				Help:      "Total number of failed mail provider fetches, by source",
			},
			[]string{"source"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Registry returns the registry backing this recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordClassified counts one classified message. A nil Recorder is a no-op.
func (r *Recorder) RecordClassified(category model.Category) {
	if r == nil {
		return
	}
	r.messagesClassified.WithLabelValues(string(category)).Inc()
}

// RecordFetchError counts a failed call against the named source.
func (r *Recorder) RecordFetchError(source string) {
	if r == nil {
		return
	}
	r.providerFetchErrors.WithLabelValues(source).Inc()
}

// RecordHTTPRequest observes one request. route should be the route pattern, not the
// raw path, to keep label cardinality bounded.
func (r *Recorder) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
