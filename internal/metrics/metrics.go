// Package metrics provides Prometheus instrumentation for the opportunity
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScansTotal counts completed scan cycles.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbi_scans_total",
		Help: "Total number of scan cycles completed",
	})

	// ScanDuration tracks full scan cycle duration.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbi_scan_duration_seconds",
		Help:    "Scan cycle duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// ScoutFailures counts failed scout scans by scout name.
	ScoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbi_scout_failures_total",
		Help: "Scout scans that failed or timed out",
	}, []string{"scout"})

	// OpportunitiesFound counts raw opportunities emitted, by scout.
	OpportunitiesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbi_opportunities_found_total",
		Help: "Opportunities emitted by scouts",
	}, []string{"scout"})

	// AlertsTotal counts alerts routed, by priority.
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbi_alerts_total",
		Help: "Opportunity alerts routed",
	}, []string{"priority"})

	// PurchasesTotal counts autonomous purchases executed.
	PurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbi_purchases_total",
		Help: "Autonomous purchases executed",
	})

	// TrackedOpportunities gauges the live opportunity table size.
	TrackedOpportunities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbi_tracked_opportunities",
		Help: "Opportunities currently tracked",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbi_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbi_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbi_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route cardinality is small here.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
