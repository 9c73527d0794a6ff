// Package metrics exposes the Prometheus collectors of the VAT crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resultsTotal               *prometheus.CounterVec
	batchJobsTotal             *prometheus.CounterVec
	fetchErrorsTotal           *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// multiple times; the Observe helpers call it themselves.
func Init() {
	once.Do(func() {
		resultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vies_results_total",
				Help: "Result records written, labeled by service and validity.",
			},
			[]string{"service", "valid"},
		)

		batchJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vies_batch_jobs_total",
				Help: "Batch job state transitions, labeled by state.",
			},
			[]string{"state"},
		)

		fetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vies_fetch_errors_total",
				Help: "Transport failures, labeled by host and fetcher.",
			},
			[]string{"host", "client"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vies_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vies_http_requests_total",
				Help: "Requests served by the metrics server, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vies_http_request_duration_seconds",
				Help:    "Latency of requests served by the metrics server, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL, or "unknown".
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveResult counts a written result record.
func ObserveResult(service string, valid bool) {
	Init()
	resultsTotal.WithLabelValues(service, strconv.FormatBool(valid)).Inc()
}

// ObserveBatchJob counts a batch job entering state.
func ObserveBatchJob(state string) {
	Init()
	batchJobsTotal.WithLabelValues(state).Inc()
}

// ObserveFetchError counts a transport failure against rawURL's host.
func ObserveFetchError(rawURL, client string) {
	Init()
	fetchErrorsTotal.WithLabelValues(SanitizeHost(rawURL), client).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest records a request served by the metrics server.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
