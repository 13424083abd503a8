package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the speech generation service
type Metrics struct {
	// Generation metrics
	UnitsGenerated       prometheus.Counter
	GenerationFailures   prometheus.Counter
	GenerationDuration   prometheus.Histogram
	AudioSecondsProduced prometheus.Counter
	ContextWindowSize    prometheus.Histogram

	// Text chunking metrics
	ChunksProduced *prometheus.CounterVec

	// Assembly metrics
	AssembledBuffers  prometheus.Counter
	AssembledDuration prometheus.Histogram

	// Prompt metrics
	PromptDownloads      prometheus.Counter
	PromptDownloadErrors prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		UnitsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "csm_units_generated_total",
			Help: "Total number of speech units generated",
		}),
		GenerationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "csm_generation_failures_total",
			Help: "Total number of failed generation calls",
		}),
		GenerationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "csm_generation_duration_seconds",
			Help:    "Wall-clock duration of generation boundary calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		AudioSecondsProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "csm_audio_seconds_produced_total",
			Help: "Total seconds of audio produced",
		}),
		ContextWindowSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "csm_context_window_size",
			Help:    "Number of segments in each conditioning context window",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),

		ChunksProduced: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "csm_text_chunks_total",
			Help: "Total number of text chunks produced, by policy",
		}, []string{"policy"}),

		AssembledBuffers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "csm_assembled_buffers_total",
			Help: "Total number of assembled audio buffers",
		}),
		AssembledDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "csm_assembled_duration_seconds",
			Help:    "Duration of assembled audio buffers",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		PromptDownloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "csm_prompt_downloads_total",
			Help: "Total number of reference prompt downloads",
		}),
		PromptDownloadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "csm_prompt_download_errors_total",
			Help: "Total number of failed reference prompt downloads",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "csm_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"endpoint", "method", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "csm_http_request_duration_seconds",
			Help:    "HTTP API request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "csm_http_errors_total",
			Help: "Total number of HTTP API errors",
		}, []string{"endpoint", "status"}),
	}
}

// RecordHTTPRequest records one completed HTTP API request.
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string, duration float64) {
	m.HTTPRequests.WithLabelValues(endpoint, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration)
}

// RecordHTTPError records one HTTP API error response.
func (m *Metrics) RecordHTTPError(endpoint, status string) {
	m.HTTPErrors.WithLabelValues(endpoint, status).Inc()
}
