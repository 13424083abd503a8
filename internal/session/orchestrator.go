package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kikugo/sesame-csm/internal/audio"
	"github.com/kikugo/sesame-csm/internal/generation"
	"github.com/kikugo/sesame-csm/internal/metrics"
)

var (
	// ErrNotInitialized is returned when generation is requested before
	// Initialize has bound a generator and populated the registry.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrClosed is returned for any operation on a closed session.
	ErrClosed = errors.New("session closed")
)

// State is the orchestrator lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateGenerating
	StateClosed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateGenerating:
		return "generating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReferencePrompt describes one speaker's voice prompt, supplied at
// initialization time.
type ReferencePrompt struct {
	Speaker     int
	DisplayName string
	Text        string
	AudioPath   string
}

// Unit is one (speaker, text) pair of a scripted sequence.
type Unit struct {
	Speaker int
	Text    string
}

// Config tunes the orchestrator.
type Config struct {
	// HistoryLimit is the number of recent history segments included in
	// each context window. Small values (2-3) bound conditioning cost;
	// older turns are dropped entirely rather than summarized.
	HistoryLimit int

	// MaxLengthMs bounds the audio length of a single generated unit.
	MaxLengthMs int
}

// DefaultConfig returns the config used when fields are unset.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 2,
		MaxLengthMs:  10000,
	}
}

// Orchestrator drives the per-unit generation loop over a single session. It
// owns the session history: history is appended only here, one unit at a
// time, and a failed unit never contributes to it. An Orchestrator must not
// be shared across logical conversations; create one per session.
type Orchestrator struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	config  Config

	generator  generation.Generator
	registry   *Registry
	sampleRate int
	history    []audio.Segment
	state      State

	mu sync.Mutex
}

// NewOrchestrator creates an orchestrator in the Uninitialized state.
// metrics may be nil when observation is not wanted, e.g. in tests.
func NewOrchestrator(logger *slog.Logger, m *metrics.Metrics, config Config) *Orchestrator {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if config.MaxLengthMs <= 0 {
		config.MaxLengthMs = DefaultConfig().MaxLengthMs
	}
	return &Orchestrator{
		logger:  logger,
		metrics: m,
		config:  config,
		state:   StateUninitialized,
	}
}

// Initialize binds the generation boundary, records its reported sample rate,
// and populates the speaker registry from the supplied reference prompts.
// Transitions the session to Ready.
func (o *Orchestrator) Initialize(gen generation.Generator, prompts []ReferencePrompt) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateClosed {
		return ErrClosed
	}

	rate := gen.SampleRate()
	if rate <= 0 {
		return fmt.Errorf("generator reported invalid sample rate %d", rate)
	}

	registry := NewRegistry(rate)
	for _, p := range prompts {
		if _, err := registry.Register(p.Speaker, p.DisplayName, p.Text, p.AudioPath); err != nil {
			return fmt.Errorf("failed to register speaker %d (%s): %w", p.Speaker, p.DisplayName, err)
		}
		o.logger.Info("Registered speaker",
			slog.Int("speaker", p.Speaker),
			slog.String("name", p.DisplayName),
		)
	}

	o.generator = gen
	o.registry = registry
	o.sampleRate = rate
	o.history = nil
	o.state = StateReady

	o.logger.Info("Session initialized",
		slog.Int("sample_rate", rate),
		slog.Int("speakers", registry.Len()),
		slog.Int("history_limit", o.config.HistoryLimit),
	)
	return nil
}

// GenerateUnit produces speech for one unit of text. It builds the
// conditioning window, invokes the generation boundary, appends the result to
// the session history, and returns the new segment. Generation failures
// propagate unchanged and leave the history untouched.
func (o *Orchestrator) GenerateUnit(ctx context.Context, speaker int, unitText string, extra ...audio.Segment) (audio.Segment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateUninitialized:
		return audio.Segment{}, ErrNotInitialized
	case StateClosed:
		return audio.Segment{}, ErrClosed
	case StateGenerating:
		return audio.Segment{}, fmt.Errorf("generation already in progress")
	}

	profile, err := o.registry.Get(speaker)
	if err != nil {
		return audio.Segment{}, err
	}

	window := BuildContext(profile.Reference, o.history, extra, o.config.HistoryLimit)
	gen := o.generator

	// The generation call is the single long blocking operation of the
	// loop; release the lock so state and history stay observable.
	o.state = StateGenerating
	o.mu.Unlock()

	start := time.Now()
	samples, err := gen.Generate(ctx, generation.Request{
		Text:        unitText,
		Speaker:     speaker,
		Context:     window,
		MaxLengthMs: o.config.MaxLengthMs,
	})

	o.mu.Lock()
	if o.state == StateGenerating {
		o.state = StateReady
	}

	if err != nil {
		if o.metrics != nil {
			o.metrics.GenerationFailures.Inc()
		}
		o.logger.Error("Generation failed",
			slog.Int("speaker", speaker),
			slog.String("error", err.Error()),
		)
		return audio.Segment{}, err
	}

	seg := audio.NewSegment(unitText, speaker, samples, o.sampleRate)
	o.history = append(o.history, seg)

	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.UnitsGenerated.Inc()
		o.metrics.GenerationDuration.Observe(elapsed.Seconds())
		o.metrics.AudioSecondsProduced.Add(seg.Duration().Seconds())
		o.metrics.ContextWindowSize.Observe(float64(len(window)))
	}
	o.logger.Debug("Unit generated",
		slog.Int("speaker", speaker),
		slog.Int("context_size", len(window)),
		slog.Duration("audio", seg.Duration()),
		slog.Duration("elapsed", elapsed),
	)

	return seg, nil
}

// GenerateSequence drives GenerateUnit over an ordered list of units,
// accumulating the segments in call order, which is also chronological
// history order. On failure it returns the segments generated so far along
// with the error; completed units stay valid and usable.
func (o *Orchestrator) GenerateSequence(ctx context.Context, units []Unit) ([]audio.Segment, error) {
	segments := make([]audio.Segment, 0, len(units))
	for i, u := range units {
		seg, err := o.GenerateUnit(ctx, u.Speaker, u.Text)
		if err != nil {
			return segments, fmt.Errorf("unit %d/%d: %w", i+1, len(units), err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Reset clears the session history. The registry and generator binding are
// retained, and the lifecycle state does not change.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = nil
	o.logger.Debug("Session history cleared")
}

// Close ends the session. Segments already generated remain valid. The
// generator is left open: the orchestrator borrows it, and the caller that
// created it closes it. Sessions sharing one backend can come and go freely.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = StateClosed
	return nil
}

// History returns a copy of the full chronological record of generated
// segments.
func (o *Orchestrator) History() []audio.Segment {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]audio.Segment, len(o.history))
	copy(out, o.history)
	return out
}

// HistoryLen returns the number of generated segments so far.
func (o *Orchestrator) HistoryLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.history)
}

// SampleRate returns the generation sample rate, or zero before Initialize.
func (o *Orchestrator) SampleRate() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sampleRate
}

// Registry exposes the speaker registry, nil before Initialize.
func (o *Orchestrator) Registry() *Registry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.registry
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}
