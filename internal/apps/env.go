package apps

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/kikugo/sesame-csm/internal/config"
	"github.com/kikugo/sesame-csm/internal/generation"
	"github.com/kikugo/sesame-csm/internal/metrics"
	"github.com/kikugo/sesame-csm/internal/prompts"
	"github.com/kikugo/sesame-csm/internal/session"
)

// Env bundles the shared wiring every application receives: configuration,
// logging, metrics, the generation boundary, the fetched prompt audio paths,
// and the output writer. It is constructed once in main and threaded through
// explicitly.
type Env struct {
	Logger      *slog.Logger
	Config      *config.Config
	Metrics     *metrics.Metrics
	Generator   generation.Generator
	PromptPaths map[string]string // catalog prompt name -> local WAV path
	Output      *OutputWriter

	// Stdin/Stdout are the interactive streams for apps that talk to the
	// user directly; tests substitute buffers.
	Stdin  io.Reader
	Stdout io.Writer
}

// ReferencePrompt resolves a catalog prompt into a speaker reference prompt.
func (e *Env) ReferencePrompt(name string, speaker int, displayName string) (session.ReferencePrompt, error) {
	p, err := prompts.ByName(name)
	if err != nil {
		return session.ReferencePrompt{}, err
	}

	path, ok := e.PromptPaths[name]
	if !ok {
		return session.ReferencePrompt{}, fmt.Errorf("prompt audio for %q was not fetched", name)
	}

	return session.ReferencePrompt{
		Speaker:     speaker,
		DisplayName: displayName,
		Text:        p.Text,
		AudioPath:   path,
	}, nil
}

// observeAssembly records assembly metrics when metrics are enabled.
func observeAssembly(m *metrics.Metrics, samples []float32, rate int) {
	if m == nil || rate <= 0 {
		return
	}
	m.AssembledBuffers.Inc()
	m.AssembledDuration.Observe(float64(len(samples)) / float64(rate))
}
