// Package metrics defines the service's Prometheus instruments and the
// HTTP middleware that feeds the request-level ones.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passcheck_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "passcheck_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	searchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "passcheck_search_duration_seconds",
			Help:    "Visible-pass search duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passcheck_searches_total",
			Help: "Total pass searches by outcome (found, none, error).",
		},
		[]string{"outcome"},
	)

	tleFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passcheck_tle_fetches_total",
			Help: "Total TLE fetch attempts by result.",
		},
		[]string{"result"},
	)

	tleAgeSeconds = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "passcheck_tle_age_seconds",
			Help: "Age of the loaded TLE dataset in seconds.",
		},
		func() float64 {
			if tleAgeFunc == nil {
				return 0
			}
			return tleAgeFunc()
		},
	)

	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "passcheck_stream_clients",
			Help: "Currently connected tracking-stream clients.",
		},
	)
)

// tleAgeFunc is the dataset-age probe behind the gauge; set once at startup.
var tleAgeFunc func() float64

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(searchDurationSeconds)
	prometheus.MustRegister(searchesTotal)
	prometheus.MustRegister(tleFetchesTotal)
	prometheus.MustRegister(tleAgeSeconds)
	prometheus.MustRegister(streamClients)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetTLEAgeFunc installs the probe backing the TLE age gauge. Call once
// during startup, before serving traffic.
func SetTLEAgeFunc(f func() float64) {
	tleAgeFunc = f
}

// RecordSearch records one pass search with its outcome:
// "found", "none", or "error".
func RecordSearch(duration time.Duration, outcome string) {
	searchDurationSeconds.Observe(duration.Seconds())
	searchesTotal.WithLabelValues(outcome).Inc()
}

// RecordTLEFetch records one TLE fetch attempt; result is "success" or
// "error".
func RecordTLEFetch(result string) {
	tleFetchesTotal.WithLabelValues(result).Inc()
}

// StreamClientConnected / StreamClientDisconnected track the SSE client gauge.
func StreamClientConnected()    { streamClients.Inc() }
func StreamClientDisconnected() { streamClients.Dec() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
