package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	uploadBytes     prometheus.Counter
	uploadTotal     *prometheus.CounterVec
	deliveryTotal   *prometheus.CounterVec
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_cache_hits_total",
		Help: "Total public content cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_cache_misses_total",
		Help: "Total public content cache misses",
	})

	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uploads_bytes_total",
		Help: "Total bytes accepted across uploads",
	})

	uploadTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uploads_total",
		Help: "Total uploads by outcome",
	}, []string{"outcome"})

	deliveryTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsletter_deliveries_total",
		Help: "Newsletter deliveries by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, uploadBytes, uploadTotal, deliveryTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		uploadBytes:     uploadBytes,
		uploadTotal:     uploadTotal,
		deliveryTotal:   deliveryTotal,
	}
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

// RecordCacheLookup counts public content cache hits and misses.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// RecordUpload counts an upload attempt and its accepted size.
func (m *MetricsService) RecordUpload(accepted bool, size int64) {
	if m == nil {
		return
	}
	if accepted {
		m.uploadTotal.WithLabelValues("accepted").Inc()
		if size > 0 {
			m.uploadBytes.Add(float64(size))
		}
		return
	}
	m.uploadTotal.WithLabelValues("rejected").Inc()
}

// RecordDelivery counts a newsletter delivery outcome.
func (m *MetricsService) RecordDelivery(sent bool) {
	if m == nil {
		return
	}
	if sent {
		m.deliveryTotal.WithLabelValues("sent").Inc()
		return
	}
	m.deliveryTotal.WithLabelValues("failed").Inc()
}
