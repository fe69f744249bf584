package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	proxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ua_proxy_requests_total",
		Help: "Total number of proxied requests",
	}, []string{"adapter", "branch", "status"})

	backendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ua_proxy_backend_call_duration_seconds",
		Help:    "Duration of backend model calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	searchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ua_proxy_search_requests_total",
		Help: "Total number of web search attempts",
	}, []string{"status"})

	searchQuotaUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ua_proxy_search_quota_used",
		Help: "Search API calls consumed today",
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ua_proxy_rate_limited_total",
		Help: "Total number of rate limited requests",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records a completed proxy request
func (m *Metrics) RecordRequest(adapter, branch, status string) {
	proxyRequests.WithLabelValues(adapter, branch, status).Inc()
}

// RecordBackendCall records a backend model call
func (m *Metrics) RecordBackendCall(operation, status string, duration time.Duration) {
	backendCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordSearch records a web search attempt
func (m *Metrics) RecordSearch(status string) {
	searchRequests.WithLabelValues(status).Inc()
}

// SetQuotaUsed sets the current search quota usage
func (m *Metrics) SetQuotaUsed(count float64) {
	searchQuotaUsed.Set(count)
}

// RecordRateLimited records a rejected request
func (m *Metrics) RecordRateLimited() {
	rateLimited.Inc()
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
