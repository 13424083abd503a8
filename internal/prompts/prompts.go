package prompts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kikugo/sesame-csm/internal/metrics"
)

// DefaultHubBaseURL is the Hugging Face hub endpoint used to fetch the stock
// conversational prompts.
const DefaultHubBaseURL = "https://huggingface.co"

// promptRepo is the model repository the stock prompts ship with.
const promptRepo = "sesame/csm-1b"

// Prompt is one downloadable reference prompt: the transcript of the voice
// sample plus where to fetch the audio from.
type Prompt struct {
	Name     string
	Text     string
	RepoFile string
}

// Catalog returns the stock conversational prompts. The transcripts must
// match the prompt audio word for word; they condition the model alongside
// the samples.
func Catalog() []Prompt {
	return []Prompt{
		{
			Name: "conversational_a",
			Text: "like revising for an exam I'd have to try and like keep up the momentum because I'd " +
				"start really early I'd be like okay I'm gonna start revising now and then like " +
				"you're revising for ages and then I just like start losing steam I didn't do that " +
				"for the exam we had recently to be fair that was a more of a last minute scenario " +
				"but like yeah I'm trying to like yeah I noticed this yesterday that like Mondays I " +
				"sort of start the day with this not like a panic but like a",
			RepoFile: "prompts/conversational_a.wav",
		},
		{
			Name: "conversational_b",
			Text: "like a super Mario level. Like it's very like high detail. And like, once you get " +
				"into the park, it just like, everything looks like a computer game and they have all " +
				"these, like, you know, if, if there's like a, you know, like in a Mario game, they " +
				"will have like a question block. And if you like, you know, punch it, a coin will " +
				"come out. So like everyone, when they come into the park, they get like this little " +
				"bracelet and then you can go punching question blocks around.",
			RepoFile: "prompts/conversational_b.wav",
		},
	}
}

// Fetcher downloads reference prompt audio from the Hugging Face hub and
// caches it on disk. Cached files are reused across runs.
type Fetcher struct {
	baseURL    string
	cacheDir   string
	token      string
	metrics    *metrics.Metrics
	httpClient *http.Client
}

// NewFetcher creates a prompt fetcher. baseURL may be empty for the default
// hub; token is an optional bearer token for gated repositories.
func NewFetcher(baseURL, cacheDir, token string) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultHubBaseURL
	}
	return &Fetcher{
		baseURL:  baseURL,
		cacheDir: cacheDir,
		token:    token,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// WithMetrics enables download metrics on the fetcher and returns it.
func (f *Fetcher) WithMetrics(m *metrics.Metrics) *Fetcher {
	f.metrics = m
	return f
}

// Fetch ensures the prompt's audio is available locally and returns the path
// to the cached WAV file.
func (f *Fetcher) Fetch(ctx context.Context, p Prompt) (string, error) {
	local := filepath.Join(f.cacheDir, filepath.Base(p.RepoFile))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if err := f.download(ctx, p, local); err != nil {
		if f.metrics != nil {
			f.metrics.PromptDownloadErrors.Inc()
		}
		return "", err
	}

	if f.metrics != nil {
		f.metrics.PromptDownloads.Inc()
	}
	return local, nil
}

// download fetches the prompt audio from the hub into the cache path.
func (f *Fetcher) download(ctx context.Context, p Prompt, local string) error {
	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create prompt cache dir %s: %w", f.cacheDir, err)
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", f.baseURL, promptRepo, p.RepoFile)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("prompt download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("prompt download failed with HTTP %d: %s", resp.StatusCode, string(body))
	}

	// Download to a temp file first so a partial fetch never poisons the cache.
	tmp, err := os.CreateTemp(f.cacheDir, "download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write prompt audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), local); err != nil {
		return fmt.Errorf("failed to move prompt into cache: %w", err)
	}

	return nil
}

// FetchAll fetches every catalog prompt and returns name -> local path.
func (f *Fetcher) FetchAll(ctx context.Context) (map[string]string, error) {
	paths := make(map[string]string, len(Catalog()))
	for _, p := range Catalog() {
		path, err := f.Fetch(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", p.Name, err)
		}
		paths[p.Name] = path
	}
	return paths, nil
}

// ByName returns the catalog prompt with the given name.
func ByName(name string) (Prompt, error) {
	for _, p := range Catalog() {
		if p.Name == name {
			return p, nil
		}
	}
	return Prompt{}, fmt.Errorf("unknown prompt %q", name)
}
