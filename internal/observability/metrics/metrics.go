// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "daisy_dictation"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Recording metrics
	RecordingsStarted   prometheus.Counter
	RecordingsActive    prometheus.Gauge
	RecordingsCompleted prometheus.Counter
	RecordingsFailed    *prometheus.CounterVec
	RecordingDuration   prometheus.Histogram

	// Audio metrics
	AudioChunksReceived prometheus.Counter
	AudioBytesReceived  prometheus.Counter

	// Playback metrics
	PlaybackHandlesLive prometheus.Gauge
	PlaybackTotal       *prometheus.CounterVec

	// STT metrics
	STTRequests     *prometheus.CounterVec
	STTLatency      *prometheus.HistogramVec
	STTErrors       *prometheus.CounterVec
	STTAudioSeconds prometheus.Counter

	// Generation metrics
	GenerationRequests       *prometheus.CounterVec
	GenerationLatency        prometheus.Histogram
	GenerationFragments      prometheus.Counter
	GenerationMalformedLines prometheus.Counter

	// Storage metrics
	StorageOps     *prometheus.CounterVec
	StorageLatency *prometheus.HistogramVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCRequests   *prometheus.CounterVec
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamDuration prometheus.Histogram
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RecordingsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_started_total",
			Help:      "Total number of recordings started",
		}),
		RecordingsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recordings_active",
			Help:      "Number of recordings currently holding the microphone",
		}),
		RecordingsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_completed_total",
			Help:      "Total number of recordings stopped with an artifact",
		}),
		RecordingsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_failed_total",
			Help:      "Total number of recordings that failed to start",
		}, []string{"reason"}),
		RecordingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Elapsed recording time at stop in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),

		AudioChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total non-empty audio chunks appended to a recording",
		}),
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes appended to a recording",
		}),

		PlaybackHandlesLive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_handles_live",
			Help:      "Number of live playback handles",
		}),
		PlaybackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_total",
			Help:      "Total playback attempts by outcome",
		}, []string{"outcome"}),

		STTRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_requests_total",
			Help:      "Total transcription requests by outcome",
		}, []string{"provider", "outcome"}),
		STTLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Transcription request latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),
		STTAudioSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_audio_seconds_total",
			Help:      "Total seconds of recorded audio sent for transcription",
		}),

		GenerationRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Total document generation requests by outcome",
		}, []string{"outcome"}),
		GenerationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_seconds",
			Help:      "Document generation latency in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		GenerationFragments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_fragments_total",
			Help:      "Total text fragments received from the generation stream",
		}),
		GenerationMalformedLines: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_malformed_lines_total",
			Help:      "Total stream lines skipped because they could not be decoded",
		}),

		StorageOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total storage operations by outcome",
		}, []string{"backend", "op", "outcome"}),
		StorageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_latency_seconds",
			Help:      "Storage operation latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"backend", "op"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total unary gRPC requests by method and code",
		}, []string{"method", "code"}),
		StreamsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_streams_total",
			Help:      "Total number of gRPC streams started",
		}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_streams_active",
			Help:      "Number of currently active gRPC streams",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_stream_duration_seconds",
			Help:      "Duration of gRPC streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// RecordRecordingStart records a recording acquiring the microphone.
func (m *Metrics) RecordRecordingStart() {
	m.RecordingsStarted.Inc()
	m.RecordingsActive.Inc()
}

// RecordRecordingFailed records a recording that could not start.
func (m *Metrics) RecordRecordingFailed(reason string) {
	m.RecordingsFailed.WithLabelValues(reason).Inc()
}

// RecordRecordingEnd records the microphone being released. completed is
// true when the recording produced an artifact.
func (m *Metrics) RecordRecordingEnd(completed bool, elapsedSeconds int) {
	m.RecordingsActive.Dec()
	if completed {
		m.RecordingsCompleted.Inc()
		m.RecordingDuration.Observe(float64(elapsedSeconds))
	}
}

// RecordChunk records an audio chunk appended to a recording.
func (m *Metrics) RecordChunk(bytes int) {
	m.AudioChunksReceived.Inc()
	m.AudioBytesReceived.Add(float64(bytes))
}

// RecordHandleCreated records a playback handle being registered.
func (m *Metrics) RecordHandleCreated() {
	m.PlaybackHandlesLive.Inc()
}

// RecordHandleRevoked records a playback handle being revoked.
func (m *Metrics) RecordHandleRevoked() {
	m.PlaybackHandlesLive.Dec()
}

// RecordPlayback records the outcome of a playback attempt.
func (m *Metrics) RecordPlayback(outcome string) {
	m.PlaybackTotal.WithLabelValues(outcome).Inc()
}

// RecordSTTRequest records a transcription request.
func (m *Metrics) RecordSTTRequest(provider string, err error, latencySeconds, audioSeconds float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.STTRequests.WithLabelValues(provider, outcome).Inc()
	m.STTLatency.WithLabelValues(provider).Observe(latencySeconds)
	m.STTAudioSeconds.Add(audioSeconds)
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordGeneration records a document generation request.
func (m *Metrics) RecordGeneration(err error, latencySeconds float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.GenerationRequests.WithLabelValues(outcome).Inc()
	m.GenerationLatency.Observe(latencySeconds)
}

// RecordFragment records a text fragment received from the generation stream.
func (m *Metrics) RecordFragment() {
	m.GenerationFragments.Inc()
}

// RecordMalformedLine records a skipped generation stream line.
func (m *Metrics) RecordMalformedLine() {
	m.GenerationMalformedLines.Inc()
}

// RecordStorageOp records a storage gateway operation.
func (m *Metrics) RecordStorageOp(backend, op string, err error, latencySeconds float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.StorageOps.WithLabelValues(backend, op, outcome).Inc()
	m.StorageLatency.WithLabelValues(backend, op).Observe(latencySeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCRequest records a unary gRPC call.
func (m *Metrics) RecordGRPCRequest(method, code string) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}

// RecordStreamStart records a new gRPC stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a gRPC stream ending.
func (m *Metrics) RecordStreamEnd(durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
}
