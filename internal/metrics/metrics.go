// Package metrics provides Prometheus metrics for the ranking services and HTTP layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the service exports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reorders        *prometheus.CounterVec
	comparisons     *prometheus.CounterVec
	listsEnsured    prometheus.Counter
	ingests         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reorders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "albumrank",
				Name:      "reorders_total",
				Help:      "Total number of position rewrites",
			},
			[]string{"status"}, // status: success, failure
		),
		comparisons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "albumrank",
				Name:      "comparisons_total",
				Help:      "Total number of submitted comparisons",
			},
			[]string{"result"}, // result: moved, kept, rejected, failed
		),
		listsEnsured: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "albumrank",
				Name:      "lists_created_by_ensure_total",
				Help:      "Total number of lists created by ensure calls",
			},
		),
		ingests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "albumrank",
				Name:      "album_ingests_total",
				Help:      "Total number of album ingests",
			},
			[]string{"provider", "status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "albumrank",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "albumrank",
				Name:      "http_request_duration_seconds",
				Help:      "Time taken for HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.reorders, m.comparisons, m.listsEnsured, m.ingests, m.httpRequests, m.httpRequestTime,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Reorder records the outcome of a position rewrite.
func (m *Metrics) Reorder(err error) {
	if m == nil {
		return
	}
	m.reorders.WithLabelValues(status(err)).Inc()
}

// Comparison records a comparison submission outcome.
func (m *Metrics) Comparison(result string) {
	if m == nil {
		return
	}
	m.comparisons.WithLabelValues(result).Inc()
}

// ListsCreated records lists created by an ensure call.
func (m *Metrics) ListsCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.listsEnsured.Add(float64(n))
}

// Ingest records an album ingest outcome.
func (m *Metrics) Ingest(provider string, err error) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(provider, status(err)).Inc()
}

// Request records one HTTP request.
func (m *Metrics) Request(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpRequestTime.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
