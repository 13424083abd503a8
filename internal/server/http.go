package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kikugo/sesame-csm/internal/audio"
	"github.com/kikugo/sesame-csm/internal/config"
	"github.com/kikugo/sesame-csm/internal/generation"
	"github.com/kikugo/sesame-csm/internal/metrics"
	"github.com/kikugo/sesame-csm/internal/session"
	"github.com/kikugo/sesame-csm/internal/text"
)

// HTTPServer exposes the synthesis pipeline over HTTP: a POST endpoint that
// turns text into WAV audio, plus health, stats, config and Prometheus
// endpoints for operations.
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	metrics   *metrics.Metrics
	generator generation.Generator
	prompts   []session.ReferencePrompt

	// Server state
	startTime    time.Time
	requests     uint64
	audioSamples uint64
	mu           sync.RWMutex
}

// NewHTTPServer creates the synthesis API server. prompts is the fixed cast
// available to synthesis requests; every request's speaker id must match one
// of them. metrics may be nil in tests.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, gen generation.Generator,
	prompts []session.ReferencePrompt, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		metrics:   m,
		generator: gen,
		prompts:   prompts,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 300 * time.Second, // synthesis of long texts is slow
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/synthesize", h.withMetrics("/synthesize", h.handleSynthesize))
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/speakers", h.withMetrics("/speakers", h.handleSpeakers))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		if h.metrics == nil {
			return
		}

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)
		h.metrics.RecordHTTPRequest(endpoint, r.Method, statusCode, duration)

		if ww.statusCode >= 400 {
			h.metrics.RecordHTTPError(endpoint, statusCode)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the server's HTTP handler, for tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting synthesis API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping synthesis API server...")

	return h.server.Shutdown(ctx)
}

// synthesizeRequest is the /synthesize request body.
type synthesizeRequest struct {
	Text    string `json:"text"`
	Speaker int    `json:"speaker"`
	Policy  string `json:"policy,omitempty"`   // defaults to "sentence"
	PauseMs int    `json:"pause_ms,omitempty"` // pause between chunks, 0 = none
}

// handleSynthesize implements the POST /synthesize endpoint. Each request
// runs its own session: the text is chunked, generated unit by unit with the
// request speaker's reference voice, assembled, and returned as a WAV body.
func (h *HTTPServer) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req synthesizeRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "Field 'text' is required", http.StatusBadRequest)
		return
	}

	policy := text.Policy(req.Policy)
	if req.Policy == "" {
		policy = text.PolicySentence
	}

	requestID := uuid.New().String()
	logger := h.logger.With(slog.String("request_id", requestID))

	chunks := text.Split(req.Text, policy, text.Options{})
	if len(chunks) == 0 {
		http.Error(w, "Text contains no speakable content", http.StatusBadRequest)
		return
	}
	if h.metrics != nil {
		h.metrics.ChunksProduced.WithLabelValues(string(policy)).Add(float64(len(chunks)))
	}

	orch := session.NewOrchestrator(logger, h.metrics, session.Config{
		HistoryLimit: h.config.Generation.HistoryLimit,
		MaxLengthMs:  h.config.Generation.MaxLengthMs,
	})
	if err := orch.Initialize(h.generator, h.prompts); err != nil {
		logger.Error("Session initialization failed", slog.String("error", err.Error()))
		http.Error(w, "Synthesis unavailable", http.StatusServiceUnavailable)
		return
	}
	defer orch.Close()

	units := make([]session.Unit, len(chunks))
	for i, chunk := range chunks {
		units[i] = session.Unit{Speaker: req.Speaker, Text: chunk}
	}

	segments, err := orch.GenerateSequence(r.Context(), units)
	if err != nil {
		logger.Error("Synthesis failed", slog.String("error", err.Error()))
		if errors.Is(err, session.ErrUnknownSpeaker) {
			http.Error(w, fmt.Sprintf("Unknown speaker %d", req.Speaker), http.StatusBadRequest)
			return
		}
		http.Error(w, "Synthesis failed", http.StatusBadGateway)
		return
	}

	var samples []float32
	if req.PauseMs > 0 {
		samples, err = audio.ConcatenateWithPauses(segments, req.PauseMs)
	} else {
		samples, err = audio.Concatenate(segments)
	}
	if err != nil {
		logger.Error("Assembly failed", slog.String("error", err.Error()))
		http.Error(w, "Assembly failed", http.StatusInternalServerError)
		return
	}

	wav, err := audio.EncodeWAV(samples, orch.SampleRate())
	if err != nil {
		logger.Error("WAV encoding failed", slog.String("error", err.Error()))
		http.Error(w, "Encoding failed", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.requests++
	h.audioSamples += uint64(len(samples))
	h.mu.Unlock()

	logger.Info("Synthesis complete",
		slog.Int("chunks", len(chunks)),
		slog.Float64("audio_seconds", float64(len(samples))/float64(orch.SampleRate())),
	)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Segments", fmt.Sprintf("%d", len(segments)))
	w.Write(wav)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "sesame-csm",
			"version": "1.0.0",
		},
		"generation": map[string]interface{}{
			"backend":     h.config.Generation.Backend,
			"sample_rate": h.generator.SampleRate(),
			"speakers":    len(h.prompts),
		},
	}

	h.writeJSON(w, health)
}

// handleSpeakers implements the /speakers endpoint
func (h *HTTPServer) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type speakerInfo struct {
		Speaker     int    `json:"speaker"`
		DisplayName string `json:"display_name"`
	}

	speakers := make([]speakerInfo, len(h.prompts))
	for i, p := range h.prompts {
		speakers[i] = speakerInfo{Speaker: p.Speaker, DisplayName: p.DisplayName}
	}

	h.writeJSON(w, map[string]interface{}{
		"total":    len(speakers),
		"speakers": speakers,
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"generation": map[string]interface{}{
			"backend":             h.config.Generation.Backend,
			"endpoint":            h.config.Generation.Endpoint,
			"timeout":             h.config.Generation.Timeout,
			"max_retries":         h.config.Generation.MaxRetries,
			"max_concurrent":      h.config.Generation.MaxConcurrent,
			"max_audio_length_ms": h.config.Generation.MaxLengthMs,
			"history_limit":       h.config.Generation.HistoryLimit,
			// Note: API key is intentionally omitted for security
		},
		"audio": map[string]interface{}{
			"pause_ms":      h.config.Audio.PauseMs,
			"output_format": h.config.Audio.OutputFormat,
		},
		"prompts": map[string]interface{}{
			"cache_dir":    h.config.Prompts.CacheDir,
			"hub_base_url": h.config.Prompts.HubBaseURL,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	h.writeJSON(w, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	requests := h.requests
	audioSamples := h.audioSamples
	h.mu.RUnlock()

	rate := h.generator.SampleRate()
	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"synthesis": map[string]interface{}{
			"requests_served":        requests,
			"audio_seconds_served":   float64(audioSamples) / float64(rate),
			"generation_backend":     h.config.Generation.Backend,
			"generation_sample_rate": rate,
		},
	}

	if client, ok := h.generator.(*generation.Client); ok {
		stats["generation_client"] = client.GetStats()
	}

	h.writeJSON(w, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Sesame CSM Synthesis Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"POST /synthesize": "Synthesize text to WAV audio",
			"GET /health":      "Service health check",
			"GET /speakers":    "List available speakers",
			"GET /config":      "Get service configuration",
			"GET /stats":       "Get service statistics",
			"GET /metrics":     "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	h.writeJSON(w, apiDoc)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "Encoding failed", http.StatusInternalServerError)
		return
	}
	w.Write(data)
}
