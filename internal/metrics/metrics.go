// Package metrics exposes Prometheus collectors for editor operations and
// remote store calls.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/remote"
)

const namespace = "newsdesk"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	collectionSize prometheus.Gauge
	remoteCalls    *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	backups        *prometheus.CounterVec
}

// New creates and registers all collectors, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_operations_total",
			Help:      "Editor operations by name and result code.",
		}, []string{"op", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "editor_operation_duration_seconds",
			Help:      "Editor operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		collectionSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collection_articles",
			Help:      "Number of articles in the working collection.",
		}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Remote store calls by method and result code.",
		}, []string{"method", "code"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Remote store call latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25},
		}, []string{"method"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_exports_total",
			Help:      "Backup export attempts by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.duration,
		m.collectionSize,
		m.remoteCalls,
		m.remoteLatency,
		m.backups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation records one editor operation.
func (m *Metrics) ObserveOperation(op, code string, took time.Duration) {
	m.operations.WithLabelValues(op, code).Inc()
	m.duration.WithLabelValues(op).Observe(took.Seconds())
}

// SetCollectionSize sets the working collection gauge.
func (m *Metrics) SetCollectionSize(n int) {
	m.collectionSize.Set(float64(n))
}

// ObserveBackup records an export attempt: "exported", "skipped" or "failed".
func (m *Metrics) ObserveBackup(outcome string) {
	m.backups.WithLabelValues(outcome).Inc()
}

// InstrumentStore wraps s so every call is counted and timed.
func (m *Metrics) InstrumentStore(s remote.Store) remote.Store {
	return &instrumentedStore{next: s, m: m}
}

type instrumentedStore struct {
	next remote.Store
	m    *Metrics
}

func (s *instrumentedStore) observe(method string, start time.Time, err error) {
	code := "ok"
	if err != nil {
		code = apperr.Code(err)
	}
	s.m.remoteCalls.WithLabelValues(method, code).Inc()
	s.m.remoteLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) Get(ctx context.Context, path, branch string) (*remote.File, error) {
	start := time.Now()
	f, err := s.next.Get(ctx, path, branch)
	s.observe("get", start, err)
	return f, err
}

func (s *instrumentedStore) Put(ctx context.Context, req remote.PutRequest) (string, error) {
	start := time.Now()
	v, err := s.next.Put(ctx, req)
	s.observe("put", start, err)
	return v, err
}

func (s *instrumentedStore) Exists(ctx context.Context, path, branch string) (bool, error) {
	start := time.Now()
	ok, err := s.next.Exists(ctx, path, branch)
	s.observe("exists", start, err)
	return ok, err
}
