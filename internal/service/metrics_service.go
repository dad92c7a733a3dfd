package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	leadMutations   *prometheus.CounterVec
	leadsStored     prometheus.Gauge
	messages        *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	persistDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lead_persist_duration_seconds",
		Help:    "Duration of full collection load and save calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	leadMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_mutations_total",
		Help: "Lead store mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	leadsStored := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leads_stored",
		Help: "Number of leads currently held by the store",
	})

	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_dispatched_total",
		Help: "Outbound messages by template and status",
	}, []string{"template", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups, persistDuration, leadMutations, leadsStored, messages, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		persistDuration: persistDuration,
		leadMutations:   leadMutations,
		leadsStored:     leadsStored,
		messages:        messages,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObservePersist records a persistence round trip.
func (m *MetricsService) ObservePersist(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.persistDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLeadMutation counts a store mutation attempt.
func (m *MetricsService) RecordLeadMutation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.leadMutations.WithLabelValues(operation, outcome).Inc()
}

// SetLeadCount publishes the current store size.
func (m *MetricsService) SetLeadCount(n int) {
	if m == nil {
		return
	}
	m.leadsStored.Set(float64(n))
}

// RecordMessage counts an outbound message outcome.
func (m *MetricsService) RecordMessage(template, status string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(template, status).Inc()
}
