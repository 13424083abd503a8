package apps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kikugo/sesame-csm/internal/session"
)

// chatSpeaker is the speaker id of the interactive character.
const chatSpeaker = 0

// Chat runs an interactive loop: every line typed becomes speech in the
// character's voice, conditioned on the character's recent responses, and is
// written to a numbered WAV file. The loop ends on EOF or "quit".
type Chat struct {
	env  *Env
	orch *session.Orchestrator
	name string
}

// NewChat initializes an interactive character session.
func NewChat(env *Env, character session.ReferencePrompt) (*Chat, error) {
	character.Speaker = chatSpeaker

	orch := session.NewOrchestrator(env.Logger, env.Metrics, session.Config{
		HistoryLimit: env.Config.Generation.HistoryLimit,
		MaxLengthMs:  env.Config.Generation.MaxLengthMs,
	})
	if err := orch.Initialize(env.Generator, []session.ReferencePrompt{character}); err != nil {
		return nil, fmt.Errorf("failed to initialize chat session: %w", err)
	}

	return &Chat{env: env, orch: orch, name: character.DisplayName}, nil
}

// Loop reads lines from in and speaks each one, writing prompts to out.
func (c *Chat) Loop(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Chatting with %s. Type a line to hear it spoken; 'reset' clears the conversation; 'quit' exits.\n", c.name)

	scanner := bufio.NewScanner(in)
	turn := 0

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return scanner.Err()
		case line == "reset":
			c.orch.Reset()
			fmt.Fprintln(out, "Conversation history cleared.")
			continue
		}

		seg, err := c.orch.GenerateUnit(ctx, chatSpeaker, line)
		if err != nil {
			// Report and keep the session usable; completed turns stay valid.
			fmt.Fprintf(out, "Generation failed: %v\n", err)
			c.env.Logger.Error("Chat turn failed", slog.String("error", err.Error()))
			continue
		}

		turn++
		name := fmt.Sprintf("chat_%s_%03d", strings.ToLower(c.name), turn)
		if err := c.env.Output.SaveSegment(name, seg); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s spoke for %.1fs (saved as %s)\n", c.name, seg.Duration().Seconds(), name)
	}

	return scanner.Err()
}

// Close ends the chat session.
func (c *Chat) Close() error {
	return c.orch.Close()
}

// RunChat is the interactive chat demo with the stock friendly character.
func RunChat(ctx context.Context, env *Env) error {
	prompt, err := env.ReferencePrompt("conversational_a", chatSpeaker, "Aria")
	if err != nil {
		return err
	}

	chat, err := NewChat(env, prompt)
	if err != nil {
		return err
	}
	defer chat.Close()

	return chat.Loop(ctx, env.Stdin, env.Stdout)
}
