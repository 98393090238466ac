// Package metrics exposes dashboard, store and ingest instrumentation as
// Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"regdash/internal/core"
)

const namespace = "regdash"

// Error kinds used as label values.
const (
	KindInvalidPeriod       = "invalid_period"
	KindInsufficientData    = "insufficient_data"
	KindIncompleteTrendData = "incomplete_trend_data"
	KindStoreUnavailable    = "store_unavailable"
	KindCanceled            = "canceled"
	KindOther               = "other"
)

// Collector owns every regdash metric. It satisfies analytics.Observer,
// store.ReadObserver and worker.EventObserver.
type Collector struct {
	registry *prometheus.Registry

	assemblyDuration *prometheus.HistogramVec
	assemblyErrors   *prometheus.CounterVec
	storeReads       *prometheus.HistogramVec
	snapshotCache    *prometheus.CounterVec
	ingestEvents     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New registers all metrics on a fresh registry, along with the Go runtime
// and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		assemblyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assembly_duration_seconds",
			Help:      "Time to assemble a dashboard view model",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"period", "outcome"}),
		assemblyErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_errors_total",
			Help:      "Failed dashboard assemblies by error kind",
		}, []string{"period", "kind"}),
		storeReads: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_read_duration_seconds",
			Help:      "Backend snapshot read latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		snapshotCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_requests_total",
			Help:      "Snapshot cache lookups by result",
		}, []string{"result"}),
		ingestEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_events_total",
			Help:      "Report events handled by the ingest worker",
		}, []string{"type", "outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class",
		}, []string{"route", "code"}),
	}
}

func (c *Collector) ObserveAssembly(period core.Period, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.assemblyErrors.WithLabelValues(periodLabel(period), Kind(err)).Inc()
	}
	c.assemblyDuration.WithLabelValues(periodLabel(period), outcome).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveRead(elapsed time.Duration, cached bool, err error) {
	if cached {
		c.snapshotCache.WithLabelValues("hit").Inc()
		return
	}
	c.snapshotCache.WithLabelValues("miss").Inc()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.storeReads.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveEvent(eventType, outcome string) {
	c.ingestEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveRequest counts a finished HTTP request. Status codes are grouped
// into classes to keep label cardinality bounded.
func (c *Collector) ObserveRequest(route string, status int) {
	class := "5xx"
	switch {
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	c.httpRequests.WithLabelValues(route, class).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Kind maps an assembly or store error onto a metric label.
func Kind(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidPeriod):
		return KindInvalidPeriod
	case errors.Is(err, core.ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, core.ErrIncompleteTrendData):
		return KindIncompleteTrendData
	case errors.Is(err, core.ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOther
	}
}

// periodLabel keeps arbitrary user input out of label values.
func periodLabel(p core.Period) string {
	if p.Valid() {
		return string(p)
	}
	return "invalid"
}
