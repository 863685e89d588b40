package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the orchestrator.
type Metrics struct {
	Registry        *prometheus.Registry
	FetchesTotal    *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	ChallengesTotal *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	ListingsTotal   *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetches_total",
			Help: "Total fetch attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Fetch latency across all sources.",
			Buckets: prometheus.DefBuckets,
		},
	)
	challenges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_challenges_total",
			Help: "Anti-bot challenges encountered by source and category.",
		},
		[]string{"source", "category"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Retry attempts by source.",
		},
		[]string{"source"},
	)
	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_listings_total",
			Help: "Normalized listings produced by source.",
		},
		[]string{"source"},
	)
	rejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_rejections_total",
			Help: "Listings dropped by validation, by source.",
		},
		[]string{"source"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Scrape errors by source and type.",
		},
		[]string{"source", "error_type"},
	)

	registry.MustRegister(fetches, fetchDuration, challenges, retries, listings, rejections, errorsTotal)

	return &Metrics{
		Registry:        registry,
		FetchesTotal:    fetches,
		FetchDuration:   fetchDuration,
		ChallengesTotal: challenges,
		RetriesTotal:    retries,
		ListingsTotal:   listings,
		RejectionsTotal: rejections,
		ErrorsTotal:     errorsTotal,
	}
}

// IncFetch records one fetch attempt.
func (m *Metrics) IncFetch(source, outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFetchDuration records one fetch's latency.
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncChallenge records a detected challenge.
func (m *Metrics) IncChallenge(source, category string) {
	if m == nil {
		return
	}
	m.ChallengesTotal.WithLabelValues(source, category).Inc()
}

// IncRetry records a retry attempt.
func (m *Metrics) IncRetry(source string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(source).Inc()
}

// AddListings records normalized listings.
func (m *Metrics) AddListings(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ListingsTotal.WithLabelValues(source).Add(float64(n))
}

// AddRejections records validation drops.
func (m *Metrics) AddRejections(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RejectionsTotal.WithLabelValues(source).Add(float64(n))
}

// IncError records a scrape error by type label.
func (m *Metrics) IncError(source, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(source, errorType).Inc()
}
