package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kikugo/sesame-csm/internal/audio"
)

// Client talks to a CSM inference server over HTTP. Each Generate call posts
// the text, speaker, and serialized context window as multipart form data and
// receives WAV audio back.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // Rate limiting semaphore

	sampleRate int

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains generation client configuration
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// contextEntry describes one conditioning segment in the request metadata.
// The audio itself travels as a separate WAV form part named by File.
type contextEntry struct {
	Text    string `json:"text"`
	Speaker int    `json:"speaker"`
	File    string `json:"file"`
}

// serverInfo is the response of the inference server's /info endpoint.
type serverInfo struct {
	Model      string `json:"model"`
	SampleRate int    `json:"sample_rate"`
	Version    string `json:"version,omitempty"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a new generation HTTP client. Call Connect before the
// first Generate to learn the server's output sample rate.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Connect queries the inference server's /info endpoint and records the
// model's output sample rate.
func (c *Client) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.config.Endpoint+"/info", nil)
	if err != nil {
		return fmt.Errorf("failed to create info request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error %d from info endpoint: %s", resp.StatusCode, string(body))
	}

	var info serverInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("failed to parse info response: %w", err)
	}

	if info.SampleRate <= 0 {
		return fmt.Errorf("server reported invalid sample rate %d", info.SampleRate)
	}

	c.mu.Lock()
	c.sampleRate = info.SampleRate
	c.mu.Unlock()

	return nil
}

// SampleRate returns the server's reported output sample rate. Zero until
// Connect has succeeded.
func (c *Client) SampleRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sampleRate
}

// Generate synthesizes one unit of speech on the inference server.
func (c *Client) Generate(ctx context.Context, req Request) ([]float32, error) {
	// Acquire semaphore for rate limiting
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	var lastErr error

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		samples, err := c.doRequest(ctx, req)
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return samples, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return nil, fmt.Errorf("generation failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doRequest performs a single HTTP request to the inference server.
func (c *Client) doRequest(ctx context.Context, req Request) ([]float32, error) {
	body, contentType, err := c.createMultipartRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint+"/generate", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "audio/wav")
	c.setAuthHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transportError{err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &httpError{status: resp.StatusCode, body: string(respBody)}
		return nil, herr
	}

	samples, rate, err := audio.DecodeWAV(respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated audio: %w", err)
	}

	if expected := c.SampleRate(); expected > 0 && rate != expected {
		return nil, fmt.Errorf("server returned audio at %d Hz, expected %d Hz: %w",
			rate, expected, audio.ErrSampleRateMismatch)
	}

	return samples, nil
}

// createMultipartRequest serializes a generation request as multipart form
// data: scalar fields, a JSON context manifest, and one WAV part per context
// segment.
func (c *Client) createMultipartRequest(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"request_id":          uuid.NewString(),
		"text":                req.Text,
		"speaker":             strconv.Itoa(req.Speaker),
		"max_audio_length_ms": strconv.Itoa(req.MaxLengthMs),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	manifest := make([]contextEntry, len(req.Context))
	for i, seg := range req.Context {
		name := fmt.Sprintf("context_%d.wav", i)
		manifest[i] = contextEntry{Text: seg.Text, Speaker: seg.Speaker, File: name}

		wav, err := audio.EncodeWAV(seg.Samples, seg.SampleRate)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode context segment %d: %w", i, err)
		}

		fileWriter, err := writer.CreateFormFile(name, name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := fileWriter.Write(wav); err != nil {
			return nil, "", fmt.Errorf("failed to write context audio: %w", err)
		}
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal context manifest: %w", err)
	}
	if err := writer.WriteField("context", string(manifestJSON)); err != nil {
		return nil, "", fmt.Errorf("failed to write context manifest: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	req.Header.Set("User-Agent", "sesame-csm/1.0")
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.status, e.body)
}

// isRetryableError reports whether another attempt could succeed. Network
// failures and server-side errors are retryable; client errors are not.
func isRetryableError(err error) bool {
	if _, ok := err.(*transportError); ok {
		return true
	}
	if herr, ok := err.(*httpError); ok {
		return herr.status >= 500 || herr.status == http.StatusTooManyRequests
	}
	return false
}

func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	c.successRequests++
	c.mu.Unlock()
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	c.failedRequests++
	c.mu.Unlock()
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	c.totalRetries++
	c.mu.Unlock()
}

func (c *Client) updateAvgResponseTime(d time.Duration) {
	c.mu.Lock()
	if c.avgResponseTime == 0 {
		c.avgResponseTime = d
	} else {
		c.avgResponseTime = (c.avgResponseTime + d) / 2
	}
	c.mu.Unlock()
}
