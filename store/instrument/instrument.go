// Package instrument records Prometheus metrics for store operations.
package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jacentio/mockstate/store"
)

const (
	resultOK       = "ok"
	resultMiss     = "miss"
	resultError    = "error"
	resultCanceled = "canceled"
)

// Metrics holds the collectors shared by every instrumented store.
// A nil *Metrics records nothing.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	items    *prometheus.GaugeVec
}

// NewMetrics registers the store collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		ops: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mockstate_store_operations_total",
				Help: "Total number of store operations by backend, operation and result",
			},
			[]string{"backend", "op", "result"}, // result: ok, miss, error, canceled
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mockstate_store_operation_duration_seconds",
				Help:    "Duration of store operations by backend and operation",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"backend", "op"},
		),
		items: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mockstate_store_items",
				Help: "Item count last observed by Count or LoadAll, by store",
			},
			[]string{"store"},
		),
	}
}

// Wrapper returns a store.Wrapper instrumenting every store it decorates.
func (m *Metrics) Wrapper() store.Wrapper {
	return func(s store.Store) store.Store { return Wrap(s, m) }
}

// Wrap instruments s. With nil metrics s is returned unchanged.
func Wrap(s store.Store, m *Metrics) store.Store {
	if m == nil {
		return s
	}
	return &Store{inner: s, metrics: m}
}

func (m *Metrics) observe(backend, op string, start time.Time, err error, miss bool) {
	result := resultOK
	switch {
	case errors.Is(err, context.Canceled):
		result = resultCanceled
	case err != nil:
		result = resultError
	case miss:
		result = resultMiss
	}
	m.ops.WithLabelValues(backend, op, result).Inc()
	m.duration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// Store is an instrumented store.Store.
type Store struct {
	inner   store.Store
	metrics *Metrics
}

// Unwrap returns the decorated store.
func (s *Store) Unwrap() store.Store { return s.inner }

func (s *Store) Name() string            { return s.inner.Name() }
func (s *Store) TypeDescription() string { return s.inner.TypeDescription() }

func (s *Store) Save(ctx context.Context, key string, value store.Value) error {
	start := time.Now()
	err := s.inner.Save(ctx, key, value)
	s.metrics.observe(s.inner.TypeDescription(), "save", start, err, false)
	return err
}

func (s *Store) Load(ctx context.Context, key string) (store.Value, bool, error) {
	start := time.Now()
	v, ok, err := s.inner.Load(ctx, key)
	s.metrics.observe(s.inner.TypeDescription(), "load", start, err, !ok)
	return v, ok, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.metrics.observe(s.inner.TypeDescription(), "delete", start, err, false)
	return err
}

func (s *Store) LoadAll(ctx context.Context) (map[string]store.Value, error) {
	start := time.Now()
	all, err := s.inner.LoadAll(ctx)
	s.metrics.observe(s.inner.TypeDescription(), "loadAll", start, err, false)
	if err == nil {
		s.metrics.items.WithLabelValues(s.inner.Name()).Set(float64(len(all)))
	}
	return all, err
}

func (s *Store) HasItemWithKey(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.inner.HasItemWithKey(ctx, key)
	s.metrics.observe(s.inner.TypeDescription(), "hasItemWithKey", start, err, !ok)
	return ok, err
}

func (s *Store) Count(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.inner.Count(ctx)
	s.metrics.observe(s.inner.TypeDescription(), "count", start, err, false)
	if err == nil {
		s.metrics.items.WithLabelValues(s.inner.Name()).Set(float64(n))
	}
	return n, err
}
