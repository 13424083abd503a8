package generation

import (
	"context"

	"github.com/kikugo/sesame-csm/internal/audio"
)

// Request carries everything the speech model needs to produce one unit of
// audio: the text to speak, the speaker identity, the ordered conditioning
// context, and an upper bound on the generated audio length.
type Request struct {
	Text        string
	Speaker     int
	Context     []audio.Segment
	MaxLengthMs int
}

// Generator is the boundary to the speech model. Implementations may be
// slow and fallible; callers treat a Generate call as a single blocking
// operation and surface its errors unchanged.
type Generator interface {
	// Generate synthesizes audio samples for the request. The returned
	// samples are at the rate reported by SampleRate.
	Generate(ctx context.Context, req Request) ([]float32, error)

	// SampleRate reports the model's fixed output sample rate. It is the
	// single source of truth for all downstream assembly.
	SampleRate() int

	// Close releases any resources held by the generator.
	Close() error
}
