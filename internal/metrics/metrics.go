// Package metrics provides Prometheus metrics for the file-manager core.
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
	// Backend API
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultfm_api_requests_total",
			Help: "Total number of backend API requests",
		},
		[]string{"method", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vaultfm_api_request_duration_seconds",
			Help:    "Backend API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	throttledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultfm_api_throttled_total",
			Help: "Total 429 responses from the backend",
		},
	)

	// File-system model
	modelNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vaultfm_model_nodes",
			Help: "Number of nodes held by the file-system model",
		},
	)

	folderRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultfm_folder_refresh_total",
			Help: "Total folder refreshes",
		},
		[]string{"silent", "status"},
	)

	// Bulk operations
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultfm_operations_total",
			Help: "Total user operations by kind and outcome",
		},
		[]string{"op", "mode", "status"},
	)

	// Uploads
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultfm_uploads_total",
			Help: "Total uploaded files by strategy and outcome",
		},
		[]string{"strategy", "status"},
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultfm_upload_bytes_total",
			Help: "Total bytes sent to the backend",
		},
	)

	// Scanning
	scanPollTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultfm_scan_poll_ticks_total",
			Help: "Total scan poller ticks",
		},
	)

	infectedAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultfm_infected_alerts_total",
			Help: "Total infected-file alerts raised",
		},
	)

	// Event bus
	eventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultfm_events_dropped_total",
			Help: "Events not delivered because a subscriber buffer was full",
		},
		[]string{"type"},
	)
)

// Operation modes
const (
	ModeBulk       = "bulk"
	ModeSequential = "sequential"
	ModeSingle     = "single"
)

// Upload strategies
const (
	StrategyLinked     = "linked"
	StrategySingleShot = "single_shot"
	StrategyChunked    = "chunked"
	StrategyRejected   = "rejected"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAPIRequest records one backend request.
func RecordAPIRequest(method string, code int, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	apiRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	if code == http.StatusTooManyRequests {
		throttledTotal.Inc()
	}
}

// SetModelNodes sets the number of nodes in the model.
func SetModelNodes(n int) {
	modelNodes.Set(float64(n))
}

// RecordFolderRefresh records a folder refresh.
func RecordFolderRefresh(silent bool, err error) {
	folderRefreshTotal.WithLabelValues(strconv.FormatBool(silent), status(err)).Inc()
}

// RecordOperation records a delete/move/copy/rename/create operation.
func RecordOperation(op, mode string, err error) {
	operationsTotal.WithLabelValues(op, mode, status(err)).Inc()
}

// RecordUpload records a per-file upload outcome.
func RecordUpload(strategy string, bytes int64, err error) {
	uploadsTotal.WithLabelValues(strategy, status(err)).Inc()
	if err == nil && strategy != StrategyLinked {
		uploadBytes.Add(float64(bytes))
	}
}

// RecordScanTick records one poller tick.
func RecordScanTick() {
	scanPollTicks.Inc()
}

// RecordInfectedAlert records a raised infected-file alert.
func RecordInfectedAlert() {
	infectedAlertsTotal.Inc()
}

// RecordDroppedEvent counts one event a slow subscriber missed.
func RecordDroppedEvent(eventType string) {
	eventsDroppedTotal.WithLabelValues(eventType).Inc()
}
