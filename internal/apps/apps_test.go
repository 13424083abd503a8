package apps

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kikugo/sesame-csm/internal/audio"
	"github.com/kikugo/sesame-csm/internal/config"
	"github.com/kikugo/sesame-csm/internal/generation"
	"github.com/kikugo/sesame-csm/internal/session"
	"github.com/kikugo/sesame-csm/internal/text"
)

const testRate = 24000

// fakeGenerator records requests and returns a fixed-length buffer per call.
type fakeGenerator struct {
	requests []generation.Request
	failOn   int // 1-based call number that fails, 0 = never
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, req generation.Request) ([]float32, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.failOn != 0 && f.calls == f.failOn {
		return nil, errors.New("model unavailable")
	}
	return make([]float32, testRate/10), nil
}

func (f *fakeGenerator) SampleRate() int { return testRate }
func (f *fakeGenerator) Close() error    { return nil }

func writeRefWAV(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := audio.SaveWAVFile(make([]float32, testRate/4), path, testRate); err != nil {
		t.Fatalf("SaveWAVFile() error = %v", err)
	}
	return path
}

func testEnv(t *testing.T, gen generation.Generator) *Env {
	t.Helper()
	outDir := t.TempDir()

	cfg := &config.Config{
		Generation: config.GenerationConfig{
			Backend:      "csm",
			Endpoint:     "http://localhost:1",
			MaxLengthMs:  10000,
			HistoryLimit: 2,
		},
		Audio: config.AudioConfig{
			PauseMs:      200,
			OutputFormat: "wav",
		},
		Output: config.OutputConfig{
			Directory:       outDir,
			SaveTranscripts: true,
			SaveMetadata:    true,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Env{
		Logger:    logger,
		Config:    cfg,
		Generator: gen,
		Output:    NewOutputWriter(logger, cfg.Output, cfg.Audio),
	}
}

func testPrompt(t *testing.T, speaker int, name string) session.ReferencePrompt {
	t.Helper()
	return session.ReferencePrompt{
		Speaker:     speaker,
		DisplayName: name,
		Text:        "Reference line.",
		AudioPath:   writeRefWAV(t, t.TempDir(), "ref.wav"),
	}
}

func TestStoryGeneratorSplitsAndAssembles(t *testing.T) {
	gen := &fakeGenerator{}
	env := testEnv(t, gen)

	sg, err := NewStoryGenerator(env, testPrompt(t, 5, "Narrator"))
	if err != nil {
		t.Fatalf("NewStoryGenerator() error = %v", err)
	}
	defer sg.Close()

	story := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	full, segments, err := sg.GenerateStory(context.Background(), story, text.PolicyParagraph)
	if err != nil {
		t.Fatalf("GenerateStory() error = %v", err)
	}

	if len(segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(segments))
	}
	if want := 3 * (testRate / 10); len(full) != want {
		t.Errorf("assembled samples = %d, want %d", len(full), want)
	}

	// The narrator prompt's speaker id is overridden to the fixed id.
	for i, req := range gen.requests {
		if req.Speaker != narratorSpeaker {
			t.Errorf("request %d speaker = %d, want %d", i, req.Speaker, narratorSpeaker)
		}
	}

	// The second chunk's context carries the reference and the first chunk.
	second := gen.requests[1].Context
	if len(second) != 2 {
		t.Fatalf("second request context = %d segments, want 2", len(second))
	}
	if second[0].Text != "Reference line." {
		t.Errorf("context[0].Text = %q, want reference first", second[0].Text)
	}
	if second[1].Text != "First paragraph here." {
		t.Errorf("context[1].Text = %q, want first chunk", second[1].Text)
	}
}

func TestStoryGeneratorEmptyStory(t *testing.T) {
	env := testEnv(t, &fakeGenerator{})
	sg, err := NewStoryGenerator(env, testPrompt(t, 0, "Narrator"))
	if err != nil {
		t.Fatalf("NewStoryGenerator() error = %v", err)
	}
	defer sg.Close()

	if _, _, err := sg.GenerateStory(context.Background(), "   \n\n  ", text.PolicyParagraph); err == nil {
		t.Error("GenerateStory() with blank input should fail")
	}
}

func TestStoryGeneratorPartialFailure(t *testing.T) {
	gen := &fakeGenerator{failOn: 2}
	env := testEnv(t, gen)

	sg, err := NewStoryGenerator(env, testPrompt(t, 0, "Narrator"))
	if err != nil {
		t.Fatalf("NewStoryGenerator() error = %v", err)
	}
	defer sg.Close()

	_, segments, err := sg.GenerateStory(context.Background(), "One.\n\nTwo.\n\nThree.", text.PolicyParagraph)
	if err == nil {
		t.Fatal("GenerateStory() should surface the generation failure")
	}
	if len(segments) != 1 {
		t.Errorf("completed segments = %d, want 1", len(segments))
	}
}

func TestDialogueGeneratorPausesAndVoices(t *testing.T) {
	gen := &fakeGenerator{}
	env := testEnv(t, gen)

	characters := []session.ReferencePrompt{
		testPrompt(t, speakerHero, "Hero"),
		testPrompt(t, speakerVillain, "Villain"),
	}
	dg, err := NewDialogueGenerator(env, characters)
	if err != nil {
		t.Fatalf("NewDialogueGenerator() error = %v", err)
	}
	defer dg.Close()

	script := []session.Unit{
		{Speaker: speakerHero, Text: "Stand down."},
		{Speaker: speakerVillain, Text: "Never."},
		{Speaker: speakerHero, Text: "So be it."},
	}
	full, segments, err := dg.GenerateScript(context.Background(), script)
	if err != nil {
		t.Fatalf("GenerateScript() error = %v", err)
	}

	if len(segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(segments))
	}

	pause := env.Config.Audio.PauseMs * testRate / 1000
	if want := 3*(testRate/10) + 2*pause; len(full) != want {
		t.Errorf("assembled samples = %d, want %d", len(full), want)
	}

	for i, req := range gen.requests {
		if req.Speaker != script[i].Speaker {
			t.Errorf("request %d speaker = %d, want %d", i, req.Speaker, script[i].Speaker)
		}
	}

	// Reset between scenes clears history conditioning.
	dg.Reset()
	if _, _, err := dg.GenerateScript(context.Background(), script[:1]); err != nil {
		t.Fatalf("GenerateScript() after reset error = %v", err)
	}
	last := gen.requests[len(gen.requests)-1].Context
	if len(last) != 1 {
		t.Errorf("post-reset context = %d segments, want reference only", len(last))
	}
}

func TestDialogueUnknownSpeakerInScript(t *testing.T) {
	env := testEnv(t, &fakeGenerator{})
	dg, err := NewDialogueGenerator(env, []session.ReferencePrompt{testPrompt(t, speakerHero, "Hero")})
	if err != nil {
		t.Fatalf("NewDialogueGenerator() error = %v", err)
	}
	defer dg.Close()

	_, _, err = dg.GenerateScript(context.Background(), []session.Unit{{Speaker: 42, Text: "Who am I?"}})
	if !errors.Is(err, session.ErrUnknownSpeaker) {
		t.Errorf("GenerateScript() error = %v, want ErrUnknownSpeaker", err)
	}
}

func TestChatLoop(t *testing.T) {
	gen := &fakeGenerator{failOn: 2}
	env := testEnv(t, gen)

	chat, err := NewChat(env, testPrompt(t, 3, "Aria"))
	if err != nil {
		t.Fatalf("NewChat() error = %v", err)
	}
	defer chat.Close()

	in := strings.NewReader("Hello there.\nThis one fails.\nStill talking.\nquit\n")
	var out bytes.Buffer
	if err := chat.Loop(context.Background(), in, &out); err != nil {
		t.Fatalf("Loop() error = %v", err)
	}

	if gen.calls != 3 {
		t.Errorf("generator calls = %d, want 3", gen.calls)
	}
	if !strings.Contains(out.String(), "Generation failed") {
		t.Error("failed turn should be reported to the user")
	}

	// Turns 1 and 3 succeeded and were saved; the failed turn was not.
	if _, err := os.Stat(filepath.Join(env.Config.Output.Directory, "chat_aria_001.wav")); err != nil {
		t.Errorf("first turn audio missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.Config.Output.Directory, "chat_aria_002.wav")); err != nil {
		t.Errorf("second saved turn audio missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.Config.Output.Directory, "chat_aria_003.wav")); err == nil {
		t.Error("only two turns succeeded, third file should not exist")
	}
}

func TestChatResetCommand(t *testing.T) {
	gen := &fakeGenerator{}
	env := testEnv(t, gen)

	chat, err := NewChat(env, testPrompt(t, 0, "Aria"))
	if err != nil {
		t.Fatalf("NewChat() error = %v", err)
	}
	defer chat.Close()

	in := strings.NewReader("First line.\nreset\nSecond line.\nquit\n")
	var out bytes.Buffer
	if err := chat.Loop(context.Background(), in, &out); err != nil {
		t.Fatalf("Loop() error = %v", err)
	}

	last := gen.requests[len(gen.requests)-1].Context
	if len(last) != 1 {
		t.Errorf("post-reset context = %d segments, want reference only", len(last))
	}
}

func TestOutputWriterSidecars(t *testing.T) {
	env := testEnv(t, &fakeGenerator{})

	segments := []audio.Segment{
		audio.NewSegment("Line one.", 0, make([]float32, testRate), testRate),
		audio.NewSegment("Line two.", 1, make([]float32, testRate/2), testRate),
	}
	samples := make([]float32, testRate+testRate/2)

	if err := env.Output.SaveResult("result", samples, segments, testRate); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}

	dir := env.Config.Output.Directory
	for _, name := range []string{"result.wav", "result.transcript.json", "result.meta.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected output %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "result.transcript.json"))
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	if !strings.Contains(string(data), "Line one.") || !strings.Contains(string(data), "Line two.") {
		t.Error("transcript should contain both segment texts")
	}
}

func TestOutputWriterUlawFormat(t *testing.T) {
	env := testEnv(t, &fakeGenerator{})
	env.Config.Audio.OutputFormat = "ulaw"
	env.Output = NewOutputWriter(env.Logger, env.Config.Output, env.Config.Audio)

	seg := audio.NewSegment("Hi.", 0, make([]float32, testRate/10), testRate)
	if err := env.Output.SaveSegment("turn", seg); err != nil {
		t.Fatalf("SaveSegment() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.Config.Output.Directory, "turn.ulaw")); err != nil {
		t.Errorf("expected ulaw output: %v", err)
	}
}

func TestEnvReferencePrompt(t *testing.T) {
	env := testEnv(t, &fakeGenerator{})
	env.PromptPaths = map[string]string{
		"conversational_a": writeRefWAV(t, t.TempDir(), "a.wav"),
	}

	p, err := env.ReferencePrompt("conversational_a", 1, "Narrator")
	if err != nil {
		t.Fatalf("ReferencePrompt() error = %v", err)
	}
	if p.Speaker != 1 || p.DisplayName != "Narrator" {
		t.Errorf("prompt = %+v, want speaker 1 named Narrator", p)
	}
	if p.Text == "" {
		t.Error("prompt text should come from the catalog")
	}

	if _, err := env.ReferencePrompt("conversational_b", 0, "X"); err == nil {
		t.Error("unfetched prompt should fail")
	}
	if _, err := env.ReferencePrompt("no_such_prompt", 0, "X"); err == nil {
		t.Error("unknown catalog name should fail")
	}
}
