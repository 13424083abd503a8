package apps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kikugo/sesame-csm/internal/audio"
	"github.com/kikugo/sesame-csm/internal/session"
)

// DialogueGenerator produces scripted multi-speaker dialogue. Every line is
// conditioned on the speaking character's reference voice plus the most
// recent lines of the exchange, so replies sound like replies.
type DialogueGenerator struct {
	env  *Env
	orch *session.Orchestrator
}

// NewDialogueGenerator initializes a session with one reference prompt per
// character.
func NewDialogueGenerator(env *Env, characters []session.ReferencePrompt) (*DialogueGenerator, error) {
	orch := session.NewOrchestrator(env.Logger, env.Metrics, session.Config{
		HistoryLimit: env.Config.Generation.HistoryLimit,
		MaxLengthMs:  env.Config.Generation.MaxLengthMs,
	})
	if err := orch.Initialize(env.Generator, characters); err != nil {
		return nil, fmt.Errorf("failed to initialize dialogue session: %w", err)
	}
	return &DialogueGenerator{env: env, orch: orch}, nil
}

// GenerateScript voices an ordered dialogue script and assembles the lines
// with a short pause between turns.
func (d *DialogueGenerator) GenerateScript(ctx context.Context, script []session.Unit) ([]float32, []audio.Segment, error) {
	d.env.Logger.Info("Generating dialogue", slog.Int("lines", len(script)))

	segments, err := d.orch.GenerateSequence(ctx, script)
	if err != nil {
		return nil, segments, err
	}

	full, err := audio.ConcatenateWithPauses(segments, d.env.Config.Audio.PauseMs)
	if err != nil {
		return nil, segments, fmt.Errorf("failed to assemble dialogue audio: %w", err)
	}
	observeAssembly(d.env.Metrics, full, d.orch.SampleRate())

	return full, segments, nil
}

// Reset clears the dialogue history between independent scenes.
func (d *DialogueGenerator) Reset() {
	d.orch.Reset()
}

// SampleRate returns the session's generation sample rate.
func (d *DialogueGenerator) SampleRate() int {
	return d.orch.SampleRate()
}

// Close ends the dialogue session.
func (d *DialogueGenerator) Close() error {
	return d.orch.Close()
}

// Character ids of the demo cast.
const (
	speakerHero = iota
	speakerVillain
	speakerQuestGiver
)

// demoScripts holds the scripted scenes of the dialogue demo.
var demoScripts = map[string][]session.Unit{
	"battle": {
		{Speaker: speakerHero, Text: "Ready your weapons! Here they come!"},
		{Speaker: speakerVillain, Text: "You'll never defeat us, heroes!"},
		{Speaker: speakerHero, Text: "We'll see about that! Attack!"},
		{Speaker: speakerVillain, Text: "Take this! Dark magic strike!"},
		{Speaker: speakerHero, Text: "Shield up! Counter with fire spell!"},
		{Speaker: speakerVillain, Text: "Impossible! How are you so strong?"},
		{Speaker: speakerHero, Text: "Justice always prevails! Victory is ours!"},
	},
	"quest_start": {
		{Speaker: speakerQuestGiver, Text: "Welcome, brave adventurers. I have a quest for you."},
		{Speaker: speakerHero, Text: "We're ready to help. What do you need?"},
		{Speaker: speakerQuestGiver, Text: "The ancient crystal has been stolen from our temple."},
		{Speaker: speakerHero, Text: "That sounds serious. Where should we look?"},
		{Speaker: speakerQuestGiver, Text: "The thieves fled toward the Dark Forest. Be careful, it's dangerous."},
		{Speaker: speakerHero, Text: "Don't worry. We'll retrieve your crystal and bring justice."},
	},
}

// RunDialogue is the dialogue demo: voice each scripted scene with a small
// cast of characters, clearing history between scenes.
func RunDialogue(ctx context.Context, env *Env) error {
	cast := []struct {
		speaker int
		name    string
		prompt  string
	}{
		{speakerHero, "Hero", "conversational_a"},
		{speakerVillain, "Villain", "conversational_b"},
		{speakerQuestGiver, "Quest Giver", "conversational_b"},
	}

	characters := make([]session.ReferencePrompt, 0, len(cast))
	for _, c := range cast {
		prompt, err := env.ReferencePrompt(c.prompt, c.speaker, c.name)
		if err != nil {
			return err
		}
		characters = append(characters, prompt)
	}

	gen, err := NewDialogueGenerator(env, characters)
	if err != nil {
		return err
	}
	defer gen.Close()

	for scene, script := range demoScripts {
		env.Logger.Info("Generating scene", slog.String("scene", scene))

		full, segments, err := gen.GenerateScript(ctx, script)
		if err != nil {
			return fmt.Errorf("scene %s: %w", scene, err)
		}

		if err := env.Output.SaveResult("dialogue_"+scene, full, segments, gen.SampleRate()); err != nil {
			return fmt.Errorf("scene %s: %w", scene, err)
		}

		// Scenes are independent; one scene's lines must not condition the next.
		gen.Reset()
	}

	return nil
}
