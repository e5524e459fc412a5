// Package metrics provides Prometheus metrics for Beacon Tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec

	// Issues
	IssuesCreatedTotal  prometheus.Counter
	StatusChangesTotal  *prometheus.CounterVec
	IssuesDeletedManual prometheus.Counter

	// Uploads
	UploadsTotal      *prometheus.CounterVec
	UploadBytesStored prometheus.Counter

	// Retention cleanup
	CleanupRunsTotal     *prometheus.CounterVec
	CleanupRunDuration   prometheus.Histogram
	CleanupIssuesDeleted prometheus.Counter
	CleanupFilesDeleted  prometheus.Counter
	CleanupOrphanFiles   prometheus.Gauge
	CleanupLastRunTime   prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto(registry)

	m := &Metrics{
		registry: registry,

		HTTPRequestDuration: factory.histogramVec(prometheus.HistogramOpts{
			Namespace: "beacon",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		HTTPRequestsTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		IssuesCreatedTotal: factory.counter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "issues",
			Name:      "created_total",
			Help:      "Total number of issues created.",
		}),

		StatusChangesTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "issues",
			Name:      "status_changes_total",
			Help:      "Total number of issue status changes.",
		}, []string{"status"}),

		IssuesDeletedManual: factory.counter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "issues",
			Name:      "deleted_manual_total",
			Help:      "Total number of issues deleted by admins.",
		}),

		UploadsTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "uploads",
			Name:      "total",
			Help:      "Total number of processed uploads by result.",
		}, []string{"result"}),

		UploadBytesStored: factory.counter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "uploads",
			Name:      "bytes_stored_total",
			Help:      "Total bytes of processed images written to storage.",
		}),

		CleanupRunsTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Total number of retention cleanup runs by outcome.",
		}, []string{"outcome"}),

		CleanupRunDuration: factory.histogram(prometheus.HistogramOpts{
			Namespace: "beacon",
			Subsystem: "cleanup",
			Name:      "run_duration_seconds",
			Help:      "Duration of retention cleanup runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),

		CleanupIssuesDeleted: factory.counter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "cleanup",
			Name:      "issues_deleted_total",
			Help:      "Total number of expired issues purged.",
		}),

		CleanupFilesDeleted: factory.counter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "cleanup",
			Name:      "files_deleted_total",
			Help:      "Total number of image files removed from storage.",
		}),

		CleanupOrphanFiles: factory.gauge(prometheus.GaugeOpts{
			Namespace: "beacon",
			Subsystem: "cleanup",
			Name:      "orphan_files",
			Help:      "Orphan files found by the most recent reconciliation pass.",
		}),

		CleanupLastRunTime: factory.gauge(prometheus.GaugeOpts{
			Namespace: "beacon",
			Subsystem: "cleanup",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last completed cleanup run.",
		}),
	}

	return m
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
}

// RecordCleanupRun records the result of one retention cleanup run.
func (m *Metrics) RecordCleanupRun(outcome string, duration time.Duration, issuesDeleted, filesDeleted int) {
	m.CleanupRunsTotal.WithLabelValues(outcome).Inc()
	m.CleanupRunDuration.Observe(duration.Seconds())
	m.CleanupIssuesDeleted.Add(float64(issuesDeleted))
	m.CleanupFilesDeleted.Add(float64(filesDeleted))
	m.CleanupLastRunTime.SetToCurrentTime()
}

// factoryFns wraps registration so every collector lands on our registry.
type factoryFns struct {
	registry *prometheus.Registry
}

func promauto(registry *prometheus.Registry) factoryFns {
	return factoryFns{registry: registry}
}

func (f factoryFns) counter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	f.registry.MustRegister(c)
	return c
}

func (f factoryFns) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.registry.MustRegister(c)
	return c
}

func (f factoryFns) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.registry.MustRegister(g)
	return g
}

func (f factoryFns) histogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	f.registry.MustRegister(h)
	return h
}

func (f factoryFns) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.registry.MustRegister(h)
	return h
}
