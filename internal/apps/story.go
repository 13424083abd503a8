package apps

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kikugo/sesame-csm/internal/audio"
	"github.com/kikugo/sesame-csm/internal/session"
	"github.com/kikugo/sesame-csm/internal/text"
)

// narratorSpeaker is the fixed speaker id of the story narrator.
const narratorSpeaker = 0

// StoryGenerator turns a text document into continuous narrated audio with a
// single consistent voice. Each chunk is generated with the narrator's
// reference prompt plus a short tail of the chunks already spoken, which
// keeps prosody coherent across an arbitrarily long story.
type StoryGenerator struct {
	env  *Env
	orch *session.Orchestrator
}

// NewStoryGenerator initializes a session with the given narrator prompt.
func NewStoryGenerator(env *Env, narrator session.ReferencePrompt) (*StoryGenerator, error) {
	narrator.Speaker = narratorSpeaker

	orch := session.NewOrchestrator(env.Logger, env.Metrics, session.Config{
		HistoryLimit: env.Config.Generation.HistoryLimit,
		MaxLengthMs:  env.Config.Generation.MaxLengthMs,
	})
	if err := orch.Initialize(env.Generator, []session.ReferencePrompt{narrator}); err != nil {
		return nil, fmt.Errorf("failed to initialize narrator session: %w", err)
	}

	return &StoryGenerator{env: env, orch: orch}, nil
}

// GenerateStory narrates a story document, splitting it with the given
// policy. It returns the continuous audio and the per-chunk segments.
func (s *StoryGenerator) GenerateStory(ctx context.Context, story string, policy text.Policy) ([]float32, []audio.Segment, error) {
	chunks := text.Split(story, policy, text.Options{})
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("story text is empty")
	}
	if s.env.Metrics != nil {
		s.env.Metrics.ChunksProduced.WithLabelValues(string(policy)).Add(float64(len(chunks)))
	}

	s.env.Logger.Info("Generating story audio",
		slog.Int("chunks", len(chunks)),
		slog.String("policy", string(policy)),
	)

	units := make([]session.Unit, len(chunks))
	for i, chunk := range chunks {
		units[i] = session.Unit{Speaker: narratorSpeaker, Text: chunk}
	}

	segments, err := s.orch.GenerateSequence(ctx, units)
	if err != nil {
		return nil, segments, err
	}

	full, err := audio.Concatenate(segments)
	if err != nil {
		return nil, segments, fmt.Errorf("failed to assemble story audio: %w", err)
	}
	observeAssembly(s.env.Metrics, full, s.orch.SampleRate())

	return full, segments, nil
}

// GenerateChapters narrates a list of chapters, resetting history between
// them and writing one output file per chapter.
func (s *StoryGenerator) GenerateChapters(ctx context.Context, chapters []string, outputPrefix string) error {
	for i, chapter := range chapters {
		s.env.Logger.Info("Processing chapter", slog.Int("chapter", i+1), slog.Int("total", len(chapters)))

		full, segments, err := s.GenerateStory(ctx, chapter, text.PolicyParagraph)
		if err != nil {
			return fmt.Errorf("chapter %d: %w", i+1, err)
		}

		name := fmt.Sprintf("%s_%02d", outputPrefix, i+1)
		if err := s.env.Output.SaveResult(name, full, segments, s.orch.SampleRate()); err != nil {
			return fmt.Errorf("chapter %d: %w", i+1, err)
		}

		// Chapters are independent narrations; history does not carry over.
		s.orch.Reset()
	}
	return nil
}

// SampleRate returns the session's generation sample rate.
func (s *StoryGenerator) SampleRate() int {
	return s.orch.SampleRate()
}

// Close ends the narration session.
func (s *StoryGenerator) Close() error {
	return s.orch.Close()
}

// RunStory is the story demo: narrate the built-in sample story and save
// the result.
func RunStory(ctx context.Context, env *Env) error {
	prompt, err := env.ReferencePrompt("conversational_a", narratorSpeaker, "Narrator")
	if err != nil {
		return err
	}

	gen, err := NewStoryGenerator(env, prompt)
	if err != nil {
		return err
	}
	defer gen.Close()

	full, segments, err := gen.GenerateStory(ctx, sampleStory, text.PolicyParagraph)
	if err != nil {
		return fmt.Errorf("story generation failed: %w", err)
	}

	if err := env.Output.SaveResult("maya_inventor_story", full, segments, gen.SampleRate()); err != nil {
		return err
	}

	env.Logger.Info("Story audio generated",
		slog.Int("segments", len(segments)),
		slog.String("output", filepath.Join(env.Config.Output.Directory, "maya_inventor_story.wav")),
		slog.Float64("audio_seconds", float64(len(full))/float64(gen.SampleRate())),
	)
	return nil
}

// sampleStory is the demo narration text.
const sampleStory = `In a small town nestled between rolling hills, there lived a young inventor named Maya. She spent her days tinkering with gadgets and dreaming of creating something that would change the world.

One day, while working in her workshop, she discovered an unusual crystal that seemed to glow with an inner light. As she held it in her hand, she felt a strange warmth spreading through her fingers.

Little did she know, this crystal would lead her on an adventure beyond her wildest dreams, and change not just her life, but the entire town's future.`
