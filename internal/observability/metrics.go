package observability

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics a client or server process
// exposes for its transfer, transport, crypto, and storage subsystems.
type Metrics struct {
	// Transfer metrics
	TransfersTotal        *prometheus.CounterVec
	TransfersActive       prometheus.Gauge
	TransferDuration      prometheus.Histogram
	BytesTransferredTotal *prometheus.CounterVec
	ChunksSentTotal       prometheus.Counter
	ChunksReceivedTotal   prometheus.Counter
	ChunksRetransmitted   *prometheus.CounterVec

	// Transport connection metrics (transport-agnostic: QUIC today,
	// any Transport implementation tomorrow)
	ConnectionsTotal    *prometheus.CounterVec
	ConnectionsActive   prometheus.Gauge
	ConnectionDuration  prometheus.Histogram
	BandwidthLimitBytes prometheus.Gauge
	LimiterWaitDuration prometheus.Histogram

	// FEC metrics
	FECEnabled                     prometheus.Gauge
	FECReconstructionsTotal        prometheus.Counter
	FECReconstructionFailuresTotal prometheus.Counter
	FECParityShardsSentTotal       prometheus.Counter

	// Crypto metrics
	CryptoOperationsTotal   *prometheus.CounterVec
	CryptoOperationDuration prometheus.Histogram

	// Storage / quota metrics
	ResumeCheckpointDuration prometheus.Histogram
	StorageOperationsTotal   *prometheus.CounterVec
	QuotaUsedBytes           prometheus.Gauge
	QuotaUsagePercent        prometheus.Gauge

	activeTransfers int64
}

// NewMetrics creates and registers the process's Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TransfersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftscore_transfers_total",
				Help: "Total transfers initiated",
			},
			[]string{"status"},
		),

		TransfersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ftscore_transfers_active",
				Help: "Currently active transfers",
			},
		),

		TransferDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ftscore_transfer_duration_seconds",
				Help:    "Transfer completion time distribution",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
			},
		),

		BytesTransferredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftscore_bytes_transferred_total",
				Help: "Total bytes transferred",
			},
			[]string{"direction"},
		),

		ChunksSentTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ftscore_chunks_sent_total",
				Help: "Total chunks sent",
			},
		),

		ChunksReceivedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ftscore_chunks_received_total",
				Help: "Total chunks received",
			},
		),

		ChunksRetransmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftscore_chunks_retransmitted_total",
				Help: "Chunks requiring retransmission",
			},
			[]string{"reason"},
		),

		ConnectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftscore_connections_total",
				Help: "Transport connection attempts",
			},
			[]string{"result"},
		),

		ConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ftscore_connections_active",
				Help: "Active transport connections",
			},
		),

		ConnectionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ftscore_connection_duration_seconds",
				Help:    "Transport connection lifetime",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),

		BandwidthLimitBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ftscore_bandwidth_limit_bytes_per_second",
				Help: "Configured bandwidth limit, 0 if unlimited",
			},
		),

		LimiterWaitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ftscore_bandwidth_limiter_wait_seconds",
				Help:    "Time a sender/receiver blocked acquiring tokens from the bandwidth limiter",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),

		FECEnabled: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ftscore_fec_enabled",
				Help: "FEC currently enabled (0/1)",
			},
		),

		FECReconstructionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ftscore_fec_reconstructions_total",
				Help: "Chunks reconstructed via FEC",
			},
		),

		FECReconstructionFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ftscore_fec_reconstruction_failures_total",
				Help: "Failed FEC reconstructions",
			},
		),

		FECParityShardsSentTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ftscore_fec_parity_shards_sent_total",
				Help: "Parity shards transmitted",
			},
		),

		CryptoOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftscore_crypto_operations_total",
				Help: "Cryptographic operations performed",
			},
			[]string{"operation"},
		),

		CryptoOperationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ftscore_crypto_operation_duration_seconds",
				Help:    "Crypto operation latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),

		ResumeCheckpointDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ftscore_resume_checkpoint_duration_seconds",
				Help:    "Resume-state checkpoint write latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),

		StorageOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftscore_storage_operations_total",
				Help: "Storage/quota coordinator operation count",
			},
			[]string{"operation", "result"},
		),

		QuotaUsedBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ftscore_quota_used_bytes",
				Help: "Bytes currently reserved or committed against the storage quota",
			},
		),

		QuotaUsagePercent: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ftscore_quota_usage_percent",
				Help: "Storage quota usage as a percentage of the configured limit",
			},
		),
	}

	return m
}

// RecordTransferStart increments active transfer counters.
func (m *Metrics) RecordTransferStart() {
	atomic.AddInt64(&m.activeTransfers, 1)
	m.TransfersActive.Set(float64(atomic.LoadInt64(&m.activeTransfers)))
}

// RecordTransferComplete records transfer completion metrics.
func (m *Metrics) RecordTransferComplete(success bool, durationSeconds float64) {
	atomic.AddInt64(&m.activeTransfers, -1)
	m.TransfersActive.Set(float64(atomic.LoadInt64(&m.activeTransfers)))

	status := "success"
	if !success {
		status = "failure"
	}

	m.TransfersTotal.WithLabelValues(status).Inc()
	m.TransferDuration.Observe(durationSeconds)
}

// RecordChunkSent updates metrics for a sent chunk.
func (m *Metrics) RecordChunkSent(bytes int) {
	m.ChunksSentTotal.Inc()
	m.BytesTransferredTotal.WithLabelValues("sent").Add(float64(bytes))
}

// RecordChunkReceived updates metrics for a received chunk.
func (m *Metrics) RecordChunkReceived(bytes int) {
	m.ChunksReceivedTotal.Inc()
	m.BytesTransferredTotal.WithLabelValues("received").Add(float64(bytes))
}

// RecordChunkRetransmit increments retransmit counters.
func (m *Metrics) RecordChunkRetransmit(reason string) {
	m.ChunksRetransmitted.WithLabelValues(reason).Inc()
}

// RecordConnection logs transport connection attempts.
func (m *Metrics) RecordConnection(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.ConnectionsTotal.WithLabelValues(result).Inc()

	if success {
		m.ConnectionsActive.Inc()
	}
}

// RecordConnectionClose updates metrics for a closed transport connection.
func (m *Metrics) RecordConnectionClose(durationSeconds float64) {
	m.ConnectionsActive.Dec()
	m.ConnectionDuration.Observe(durationSeconds)
}

// RecordLimiterWait observes how long a caller blocked in
// TokenBucket.Acquire and publishes the configured limit.
func (m *Metrics) RecordLimiterWait(waitSeconds float64, limitBytesPerSecond float64) {
	m.LimiterWaitDuration.Observe(waitSeconds)
	m.BandwidthLimitBytes.Set(limitBytesPerSecond)
}

// RecordCryptoOperation records cryptographic operation duration.
func (m *Metrics) RecordCryptoOperation(operation string, durationSeconds float64) {
	m.CryptoOperationsTotal.WithLabelValues(operation).Inc()
	m.CryptoOperationDuration.Observe(durationSeconds)
}

// RecordFECReconstruction updates FEC reconstruction counters.
func (m *Metrics) RecordFECReconstruction(success bool) {
	if success {
		m.FECReconstructionsTotal.Inc()
	} else {
		m.FECReconstructionFailuresTotal.Inc()
	}
}

// SetFECEnabled sets the FEC enabled flag.
func (m *Metrics) SetFECEnabled(enabled bool) {
	if enabled {
		m.FECEnabled.Set(1)
	} else {
		m.FECEnabled.Set(0)
	}
}

// RecordStorageOperation increments a labeled storage/quota operation
// counter (e.g. "reserve"/"commit"/"release" crossed with "ok"/"denied").
func (m *Metrics) RecordStorageOperation(operation, result string) {
	m.StorageOperationsTotal.WithLabelValues(operation, result).Inc()
}

// SetQuotaUsage updates the quota gauges from the storage coordinator's
// current view.
func (m *Metrics) SetQuotaUsage(usedBytes int64, usagePercent float64) {
	m.QuotaUsedBytes.Set(float64(usedBytes))
	m.QuotaUsagePercent.Set(usagePercent)
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
