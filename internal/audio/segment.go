package audio

import "time"

// Segment represents one immutable unit of speech: the text that was spoken,
// the speaker it belongs to, and the audio samples that realize it. Segments
// are created once, by the generation boundary or by reference prompt loading,
// and are never mutated afterwards. They may be shared read-only across any
// number of context windows.
type Segment struct {
	Text       string
	Speaker    int
	Samples    []float32
	SampleRate int
}

// NewSegment creates a segment from generated or loaded audio samples.
func NewSegment(text string, speaker int, samples []float32, sampleRate int) Segment {
	return Segment{
		Text:       text,
		Speaker:    speaker,
		Samples:    samples,
		SampleRate: sampleRate,
	}
}

// Duration returns the playback duration of the segment.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// Empty reports whether the segment carries no audio.
func (s Segment) Empty() bool {
	return len(s.Samples) == 0
}
