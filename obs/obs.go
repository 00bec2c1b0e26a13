//go:build !nometrics

package obs

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

var (
	setupOnce sync.Once
	shutdown  = func(context.Context) error { return nil }
)

var (
	proxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creators_proxy_requests_total",
		Help: "Total proxy requests by route and HTTP status code.",
	}, []string{"route", "code"})
	proxyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "creators_proxy_request_duration_ms",
		Help:    "Histogram of proxy request latency in ms.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"route"})
	upstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "creators_proxy_upstream_fetch_duration_ms",
		Help:    "Histogram of upstream fetch latency in ms.",
		Buckets: prometheus.ExponentialBuckets(50, 2, 10),
	})
	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creators_proxy_upstream_errors_total",
		Help: "Count of failed upstream fetches grouped by kind.",
	}, []string{"kind"})
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creators_proxy_cache_lookups_total",
		Help: "Cache lookups by result (hit or miss).",
	}, []string{"result"})
	cachedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "creators_proxy_cached_records",
		Help: "Number of creator records currently held in the cache.",
	})
	refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creators_proxy_refresh_total",
		Help: "Forced cache refreshes by outcome.",
	}, []string{"outcome"})
)

// ObserveProxyRequest records proxy-level metrics.
func ObserveProxyRequest(route string, status int, duration time.Duration, traceID string) {
	proxyRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	observer := proxyDuration.WithLabelValues(route)
	if eo, ok := observer.(prometheus.ExemplarObserver); ok && traceID != "" {
		eo.ObserveWithExemplar(
			float64(duration.Milliseconds()),
			prometheus.Labels{"trace_id": traceID},
		)
		return
	}
	observer.Observe(float64(duration.Milliseconds()))
}

// RecordUpstreamFetch observes the latency of an upstream fetch and counts
// failures by kind. An empty kind means success.
func RecordUpstreamFetch(duration time.Duration, kind string) {
	upstreamDuration.Observe(float64(duration.Milliseconds()))
	if kind != "" {
		upstreamErrors.WithLabelValues(kind).Inc()
	}
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// SetCachedRecords updates the cached record gauge.
func SetCachedRecords(n int) {
	cachedRecords.Set(float64(n))
}

// RecordRefresh counts a forced refresh.
func RecordRefresh(ok bool) {
	if ok {
		refreshes.WithLabelValues("ok").Inc()
		return
	}
	refreshes.WithLabelValues("error").Inc()
}

// InitTracer sets up a minimal OpenTelemetry tracer provider.
func InitTracer(serviceName string) (func(context.Context) error, error) {
	var initErr error
	setupOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
			),
		)
		if err != nil {
			initErr = err
			return
		}

		provider := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.3))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(provider)
		shutdown = provider.Shutdown
	})
	return shutdown, initErr
}
