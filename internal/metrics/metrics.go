// Package metrics collects per-repository crawl counters and writes them in
// the node exporter textfile format at the end of a run.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "harvester"

// CrawlMetrics holds the instruments of one run. A nil *CrawlMetrics
// records nothing.
type CrawlMetrics struct {
	registry *prometheus.Registry

	records      *prometheus.CounterVec
	errors       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lastSuccess  *prometheus.GaugeVec
	runTimestamp prometheus.Gauge
}

func New() *CrawlMetrics {
	m := &CrawlMetrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records processed per repository and outcome (written, header, deleted, touched).",
		}, []string{"repository", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_errors_total",
			Help:      "Record level failures per repository.",
		}, []string{"repository"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Duration of a repository crawl including stale record updates.",
			Buckets:   []float64{1, 5, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"repository", "status"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last crawl that finished within its error budget.",
		}, []string{"repository"}),
		runTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
	}
	m.registry.MustRegister(m.records, m.errors, m.duration, m.lastSuccess, m.runTimestamp)
	return m
}

// RecordOutcome adds n records with the given outcome.
func (m *CrawlMetrics) RecordOutcome(repository, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(repository, outcome).Add(float64(n))
}

func (m *CrawlMetrics) RecordErrors(repository string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.errors.WithLabelValues(repository).Add(float64(n))
}

// RecordCrawl observes one repository crawl. A complete crawl also moves the
// last success gauge to end.
func (m *CrawlMetrics) RecordCrawl(repository, status string, d time.Duration, end time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(repository, status).Observe(d.Seconds())
	if status == "complete" {
		m.lastSuccess.WithLabelValues(repository).Set(float64(end.Unix()))
	}
}

// Gatherer exposes the registry, mainly for tests.
func (m *CrawlMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile stamps the run time and writes every metric to path. An
// empty path or nil receiver is a no-op.
func (m *CrawlMetrics) WriteTextfile(path string, finished time.Time) error {
	if m == nil || path == "" {
		return nil
	}
	m.runTimestamp.Set(float64(finished.Unix()))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
