package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dealdesk_api_build_info",
			Help: "Build information of the DealDesk API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealdesk_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dealdesk_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Report query metrics
	ReportQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_api_report_queries_total",
			Help: "Total number of ad-hoc report queries",
		},
		[]string{"source", "status"},
	)

	ReportQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealdesk_api_report_query_duration_seconds",
			Help:    "Duration of ad-hoc report queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
		[]string{"store"},
	)

	ReportValidationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealdesk_api_report_validation_failures_total",
			Help: "Total number of report specs rejected before execution",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordReportQuery records metrics for one executed report query.
func RecordReportQuery(source, store string, duration time.Duration, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	ReportQueriesTotal.WithLabelValues(source, status).Inc()
	ReportQueryDuration.WithLabelValues(store).Observe(duration.Seconds())
}

// RecordValidationFailure records a spec that was rejected before touching
// any store.
func RecordValidationFailure() {
	ReportValidationFailuresTotal.Inc()
}
