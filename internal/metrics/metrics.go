// Package metrics exposes Prometheus collectors for the discovery service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	usersDiscoveredTotal   prometheus.Counter
	usersVisitedTotal      prometheus.Counter
	usersWithHitsTotal     prometheus.Counter
	emailsFoundTotal       *prometheus.CounterVec
	emailsWrittenTotal     prometheus.Counter
	emailsDedupSkipped     prometheus.Counter
	requestsTotal          *prometheus.CounterVec
	requestErrorsTotal     *prometheus.CounterVec
	requestLatencySeconds  *prometheus.HistogramVec
	emailsPerUserHistogram prometheus.Histogram
	runDurationSeconds     prometheus.Summary
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		usersDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrape_users_discovered_total",
			Help: "Directory users discovered.",
		})

		usersVisitedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrape_users_visited_total",
			Help: "Directory users visited.",
		})

		usersWithHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scrape_users_with_hits_total",
			Help: "Users with at least one newly written email.",
		})

		emailsFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emails_found_total",
				Help: "Emails written, labeled by provenance source.",
			},
			[]string{"source"},
		)

		emailsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "emails_written_total",
			Help: "Emails written to the persisted store.",
		})

		emailsDedupSkipped = promauto.NewCounter(prometheus.CounterOpts{
			Name: "emails_dedup_skipped_total",
			Help: "Emails skipped because they were already seen.",
		})

		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_requests_total",
				Help: "Outbound HTTP requests, labeled by target and status.",
			},
			[]string{"target", "status"},
		)

		requestErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_request_errors_total",
				Help: "Outbound HTTP request failures, labeled by target.",
			},
			[]string{"target"},
		)

		requestLatencySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_request_latency_seconds",
				Help:    "Outbound HTTP request latency, labeled by target.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"target"},
		)

		emailsPerUserHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "emails_per_user",
			Help:    "Newly written emails per user with hits.",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		})

		runDurationSeconds = promauto.NewSummary(prometheus.SummaryOpts{
			Name: "run_duration_seconds",
			Help: "Total crawl run duration in seconds.",
		})

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Inbound HTTP requests, labeled by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		)

		httpLatencySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_latency_seconds",
				Help:    "Inbound HTTP request latency, labeled by method and route.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 1, 5, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUsersDiscovered adds to the discovered-user counter.
func ObserveUsersDiscovered(n int) {
	if n > 0 {
		usersDiscoveredTotal.Add(float64(n))
	}
}

// ObserveUserVisited increments the visited-user counter.
func ObserveUserVisited() {
	usersVisitedTotal.Inc()
}

// ObserveUserWithHits increments the users-with-hits counter and records
// how many emails the user yielded.
func ObserveUserWithHits(emails int) {
	usersWithHitsTotal.Inc()
	emailsPerUserHistogram.Observe(float64(emails))
}

// ObserveEmailWritten increments the write counters for the given source.
func ObserveEmailWritten(source string) {
	emailsFoundTotal.WithLabelValues(source).Inc()
	emailsWrittenTotal.Inc()
}

// ObserveDedupSkip increments the dedup-skip counter.
func ObserveDedupSkip() {
	emailsDedupSkipped.Inc()
}

// ObserveRequest records one outbound request outcome.
func ObserveRequest(target string, status int, duration time.Duration) {
	requestsTotal.WithLabelValues(target, strconv.Itoa(status)).Inc()
	requestLatencySeconds.WithLabelValues(target).Observe(duration.Seconds())
}

// ObserveRequestError records one outbound request failure.
func ObserveRequestError(target string, duration time.Duration) {
	requestErrorsTotal.WithLabelValues(target).Inc()
	requestLatencySeconds.WithLabelValues(target).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one inbound API request outcome.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatencySeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRunDuration records the duration of a completed crawl run.
func ObserveRunDuration(d time.Duration) {
	runDurationSeconds.Observe(d.Seconds())
}
