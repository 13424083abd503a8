package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/kikugo/sesame-csm/internal/audio"
)

// newTestServer returns a fake inference server that records the last
// generation request it saw.
func newTestServer(t *testing.T, sampleRate int) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}

	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model":       "csm-1b",
			"sample_rate": sampleRate,
		})
	})
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec.text = r.FormValue("text")
		rec.speaker, _ = strconv.Atoi(r.FormValue("speaker"))
		rec.maxLengthMs, _ = strconv.Atoi(r.FormValue("max_audio_length_ms"))

		var manifest []contextEntry
		if err := json.Unmarshal([]byte(r.FormValue("context")), &manifest); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec.contextTexts = nil
		for _, e := range manifest {
			rec.contextTexts = append(rec.contextTexts, e.Text)
			if _, _, err := r.FormFile(e.File); err != nil {
				http.Error(w, "missing context part "+e.File, http.StatusBadRequest)
				return
			}
		}

		wav, err := audio.EncodeWAV(make([]float32, sampleRate/10), sampleRate)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, rec
}

type recordedRequest struct {
	text         string
	speaker      int
	maxLengthMs  int
	contextTexts []string
}

func TestClientConnect(t *testing.T) {
	server, _ := newTestServer(t, 24000)

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if client.SampleRate() != 0 {
		t.Error("Sample rate should be unknown before Connect")
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if client.SampleRate() != 24000 {
		t.Errorf("Expected sample rate 24000, got %d", client.SampleRate())
	}
}

func TestClientGenerate(t *testing.T) {
	server, rec := newTestServer(t, 24000)

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ref := audio.NewSegment("reference", 0, make([]float32, 2400), 24000)
	prev := audio.NewSegment("previous line", 0, make([]float32, 1200), 24000)

	samples, err := client.Generate(context.Background(), Request{
		Text:        "Hello there",
		Speaker:     0,
		Context:     []audio.Segment{ref, prev},
		MaxLengthMs: 10000,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(samples) != 2400 {
		t.Errorf("Expected 2400 samples, got %d", len(samples))
	}
	if rec.text != "Hello there" {
		t.Errorf("Server saw text %q", rec.text)
	}
	if rec.maxLengthMs != 10000 {
		t.Errorf("Server saw max length %d", rec.maxLengthMs)
	}
	if len(rec.contextTexts) != 2 || rec.contextTexts[0] != "reference" || rec.contextTexts[1] != "previous line" {
		t.Errorf("Context order not preserved: %v", rec.contextTexts)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad speaker", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	_, err = client.Generate(context.Background(), Request{Text: "x"})
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if calls != 1 {
		t.Errorf("Client errors must not be retried, got %d calls", calls)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		wav, _ := audio.EncodeWAV(make([]float32, 100), 24000)
		w.Write(wav)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	samples, err := client.Generate(ctx, Request{Text: "retry me"})
	if err != nil {
		t.Fatalf("Generate failed after retry: %v", err)
	}
	if len(samples) != 100 {
		t.Errorf("Expected 100 samples, got %d", len(samples))
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}
}
