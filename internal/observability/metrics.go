// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tubefetch"

// Metrics holds all application metrics.
type Metrics struct {
	// Video info metrics
	InfoRequestsTotal *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec

	// Download metrics
	DownloadsStarted    prometheus.Counter
	DownloadsCompleted  prometheus.Counter
	DownloadsFailed     prometheus.Counter
	DownloadsInProgress prometheus.Gauge
	DownloadBytes       prometheus.Counter
	DownloadDuration    prometheus.Histogram

	// Progress metrics
	ProgressStreams prometheus.Gauge

	// Storage metrics
	WorkspacesActive prometheus.Gauge
	SweptWorkspaces  prometheus.Counter
	CleanupFailures  prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyFailures      *prometheus.CounterVec
	ProxiesAvailable   prometheus.Gauge

	// Downloader metrics
	DownloaderRequestsTotal *prometheus.CounterVec
	DownloaderErrors        *prometheus.CounterVec
}

// New creates and registers all application metrics with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all application metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		InfoRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "info",
			Name:      "requests_total",
			Help:      "Total number of video info requests",
		}, []string{"status"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "info",
			Name:      "cache_lookups_total",
			Help:      "Video info cache lookups by result",
		}, []string{"result"}),

		DownloadsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "started_total",
			Help:      "Total number of downloads started",
		}),
		DownloadsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "completed_total",
			Help:      "Total number of downloads delivered successfully",
		}),
		DownloadsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "failed_total",
			Help:      "Total number of downloads that failed",
		}),
		DownloadsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "in_progress",
			Help:      "Number of downloads currently in progress",
		}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "bytes_total",
			Help:      "Total bytes delivered to clients",
		}),
		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "duration_seconds",
			Help:      "Histogram of download duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		ProgressStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "streams_active",
			Help:      "Number of open progress streams",
		}),

		WorkspacesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "workspaces_active",
			Help:      "Number of temporary workspaces currently in use",
		}),
		SweptWorkspaces: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "swept_workspaces_total",
			Help:      "Total number of orphaned workspaces removed by the sweeper",
		}),
		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cleanup_failures_total",
			Help:      "Total number of failed workspace removals",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPResponseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Histogram of HTTP response sizes in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000, 100000000},
		}, []string{"method", "path"}),

		ProxyRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of yt-dlp invocations made through proxies",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of proxy failures",
		}, []string{"proxy"}),
		ProxiesAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "available",
			Help:      "Number of currently available proxies",
		}),

		DownloaderRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "requests_total",
			Help:      "Total number of external tool invocations",
		}, []string{"mode", "status"}),
		DownloaderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "errors_total",
			Help:      "Total number of external tool errors",
		}, []string{"mode", "error_type"}),
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DownloadTimer returns a function to record download duration.
func (m *Metrics) DownloadTimer() func() {
	start := time.Now()

	return func() {
		m.DownloadDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, size int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(size))
}

// RecordInfoRequest records the outcome of a video info request.
func (m *Metrics) RecordInfoRequest(status string) {
	m.InfoRequestsTotal.WithLabelValues(status).Inc()
}

// RecordCacheLookup records a metadata cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordDownloadStarted increments the downloads started counter.
func (m *Metrics) RecordDownloadStarted() {
	m.DownloadsStarted.Inc()
	m.DownloadsInProgress.Inc()
}

// RecordDownloadCompleted records a delivered download.
func (m *Metrics) RecordDownloadCompleted(size int64) {
	m.DownloadsCompleted.Inc()
	m.DownloadsInProgress.Dec()
	m.DownloadBytes.Add(float64(size))
}

// RecordDownloadFailed records a failed download.
func (m *Metrics) RecordDownloadFailed() {
	m.DownloadsFailed.Inc()
	m.DownloadsInProgress.Dec()
}

// ProgressStreamOpened tracks an open progress stream until the returned func is called.
func (m *Metrics) ProgressStreamOpened() func() {
	m.ProgressStreams.Inc()

	return m.ProgressStreams.Dec
}

// WorkspaceOpened tracks an active workspace until the returned func is called.
func (m *Metrics) WorkspaceOpened() func() {
	m.WorkspacesActive.Inc()

	return m.WorkspacesActive.Dec
}

// RecordSweep records workspaces removed by the sweeper.
func (m *Metrics) RecordSweep(removed int) {
	m.SweptWorkspaces.Add(float64(removed))
}

// RecordCleanupFailure records a workspace that could not be removed.
func (m *Metrics) RecordCleanupFailure() {
	m.CleanupFailures.Inc()
}

// RecordDownloaderRequest records an external tool invocation.
func (m *Metrics) RecordDownloaderRequest(mode, status string) {
	m.DownloaderRequestsTotal.WithLabelValues(mode, status).Inc()
}

// RecordDownloaderError records an external tool error.
func (m *Metrics) RecordDownloaderError(mode, errorType string) {
	m.DownloaderErrors.WithLabelValues(mode, errorType).Inc()
}

// RecordProxyRequest records a proxy request.
func (m *Metrics) RecordProxyRequest(proxy string) {
	m.ProxyRequestsTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// SetProxiesAvailable sets the number of available proxies.
func (m *Metrics) SetProxiesAvailable(count int) {
	m.ProxiesAvailable.Set(float64(count))
}
