package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the board server.
type Metrics struct {
	LiveChunks          prometheus.Gauge
	ChunkAdmissionsTotal *prometheus.CounterVec
	ChunkLoadsTotal     *prometheus.CounterVec
	ChunkSaveDuration   prometheus.Histogram
	ChunkIdleTeardownsTotal prometheus.Counter
	CoalescedBatchSize  prometheus.Histogram
	BroadcastDropsTotal prometheus.Counter

	ConnectionsActive  prometheus.Gauge
	ConnectionsTotal   *prometheus.CounterVec
	CellsIngestedTotal prometheus.Counter
	CellsRejectedTotal *prometheus.CounterVec

	ScreenshotRenderDuration prometheus.Histogram
	ScreenshotRequestsTotal  *prometheus.CounterVec

	DatabaseOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		LiveChunks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "board_live_chunks",
			Help: "Chunks currently held in memory by a running Chunk Manager",
		}),
		ChunkAdmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "board_chunk_admissions_total",
			Help: "Chunk admission decisions",
		}, []string{"result"}),
		ChunkLoadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "board_chunk_loads_total",
			Help: "Chunk loads from the storage backend",
		}, []string{"result"}),
		ChunkSaveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "board_chunk_save_duration_seconds",
			Help:    "Chunk persist latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		ChunkIdleTeardownsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "board_chunk_idle_teardowns_total",
			Help: "Chunk managers torn down after the idle timeout",
		}),
		CoalescedBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "board_coalesced_batch_size",
			Help:    "Number of distinct cells in a coalesced update batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		BroadcastDropsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "board_broadcast_drops_total",
			Help: "Broadcast batches dropped because a subscriber's channel was full",
		}),
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "board_connections_active",
			Help: "Currently open websocket connections",
		}),
		ConnectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "board_connections_total",
			Help: "Websocket upgrade attempts",
		}, []string{"result"}),
		CellsIngestedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "board_cells_ingested_total",
			Help: "Valid PackedCells accepted from clients",
		}),
		CellsRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "board_cells_rejected_total",
			Help: "PackedCells dropped for being malformed or out of range",
		}, []string{"reason"}),
		ScreenshotRenderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "board_screenshot_render_duration_seconds",
			Help:    "Screenshot render latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		}),
		ScreenshotRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "board_screenshot_requests_total",
			Help: "Screenshot requests",
		}, []string{"result"}),
		DatabaseOperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "board_database_operations_total",
			Help: "Side-index database operation count",
		}, []string{"operation", "result"}),
	}
}

// RecordAdmission records a Board Manager admission decision.
func (m *Metrics) RecordAdmission(admitted bool) {
	if admitted {
		m.ChunkAdmissionsTotal.WithLabelValues("admitted").Inc()
		m.LiveChunks.Inc()
	} else {
		m.ChunkAdmissionsTotal.WithLabelValues("refused").Inc()
	}
}

// RecordChunkTeardown records a Chunk Manager's idle self-teardown.
func (m *Metrics) RecordChunkTeardown() {
	m.LiveChunks.Dec()
	m.ChunkIdleTeardownsTotal.Inc()
}

// RecordChunkLoad records a chunk load outcome.
func (m *Metrics) RecordChunkLoad(fromBackend bool) {
	if fromBackend {
		m.ChunkLoadsTotal.WithLabelValues("hit").Inc()
	} else {
		m.ChunkLoadsTotal.WithLabelValues("miss").Inc()
	}
}

// RecordSave records a chunk save's latency.
func (m *Metrics) RecordSave(durationSeconds float64) {
	m.ChunkSaveDuration.Observe(durationSeconds)
}

// RecordCoalescedBatch records the size of one coalesced update batch.
func (m *Metrics) RecordCoalescedBatch(size int) {
	m.CoalescedBatchSize.Observe(float64(size))
}

// RecordBroadcastDrop records a lossy broadcast drop.
func (m *Metrics) RecordBroadcastDrop() {
	m.BroadcastDropsTotal.Inc()
}

// RecordConnection records a websocket upgrade attempt.
func (m *Metrics) RecordConnection(success bool) {
	if success {
		m.ConnectionsTotal.WithLabelValues("success").Inc()
		m.ConnectionsActive.Inc()
	} else {
		m.ConnectionsTotal.WithLabelValues("failure").Inc()
	}
}

// RecordConnectionClosed decrements the active connection gauge.
func (m *Metrics) RecordConnectionClosed() {
	m.ConnectionsActive.Dec()
}

// RecordCellIngested increments the accepted-cell counter.
func (m *Metrics) RecordCellIngested() {
	m.CellsIngestedTotal.Inc()
}

// RecordCellRejected increments the rejected-cell counter for reason.
func (m *Metrics) RecordCellRejected(reason string) {
	m.CellsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordScreenshot records a screenshot render's latency and outcome.
func (m *Metrics) RecordScreenshot(success bool, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.ScreenshotRequestsTotal.WithLabelValues(result).Inc()
	m.ScreenshotRenderDuration.Observe(durationSeconds)
}

// RecordDatabaseOperation records a side-index operation outcome.
func (m *Metrics) RecordDatabaseOperation(operation string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.DatabaseOperationsTotal.WithLabelValues(operation, result).Inc()
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
