package session

import (
	"errors"
	"fmt"

	"github.com/kikugo/sesame-csm/internal/audio"
)

// ErrUnknownSpeaker is returned when a speaker id was never registered.
var ErrUnknownSpeaker = errors.New("unknown speaker")

// SpeakerProfile binds a speaker id to its fixed voice-identity reference
// segment. Profiles are frozen at registration time and immutable for the
// lifetime of the session.
type SpeakerProfile struct {
	ID          int
	DisplayName string
	Reference   audio.Segment
}

// Registry maps speaker ids to their reference prompts. Reference audio is
// loaded and resampled to the generation sample rate exactly once, at
// registration.
type Registry struct {
	sampleRate int
	profiles   map[int]SpeakerProfile
}

// NewRegistry creates a registry whose reference audio is resampled to the
// given generation sample rate.
func NewRegistry(sampleRate int) *Registry {
	return &Registry{
		sampleRate: sampleRate,
		profiles:   make(map[int]SpeakerProfile),
	}
}

// Register loads the reference audio from disk, resamples it to the
// generation rate, and freezes the resulting profile. Re-registering an id
// overwrites the previous entry without error.
func (r *Registry) Register(id int, displayName, referenceText, referenceAudioPath string) (SpeakerProfile, error) {
	samples, err := audio.LoadWAVFile(referenceAudioPath, r.sampleRate)
	if err != nil {
		return SpeakerProfile{}, fmt.Errorf("failed to load reference audio for speaker %d: %w", id, err)
	}

	profile := SpeakerProfile{
		ID:          id,
		DisplayName: displayName,
		Reference:   audio.NewSegment(referenceText, id, samples, r.sampleRate),
	}
	r.profiles[id] = profile
	return profile, nil
}

// RegisterSegment registers a speaker from an already-built reference
// segment, for callers that obtained the audio elsewhere.
func (r *Registry) RegisterSegment(id int, displayName string, reference audio.Segment) SpeakerProfile {
	profile := SpeakerProfile{ID: id, DisplayName: displayName, Reference: reference}
	r.profiles[id] = profile
	return profile
}

// Get returns the profile for a speaker id.
func (r *Registry) Get(id int) (SpeakerProfile, error) {
	profile, ok := r.profiles[id]
	if !ok {
		return SpeakerProfile{}, fmt.Errorf("speaker %d: %w", id, ErrUnknownSpeaker)
	}
	return profile, nil
}

// Len returns the number of registered speakers.
func (r *Registry) Len() int {
	return len(r.profiles)
}

// IDs returns the registered speaker ids in unspecified order.
func (r *Registry) IDs() []int {
	ids := make([]int, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	return ids
}
