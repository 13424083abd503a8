package audio

import (
	"errors"
	"fmt"
)

// ErrSampleRateMismatch is returned when segments with different sample rates
// are combined. Mixing rates would silently distort timing, so assembly fails
// fast instead.
var ErrSampleRateMismatch = errors.New("segment sample rates do not match")

// Concatenate joins the audio of an ordered list of segments into one
// continuous buffer. All segments must share the same sample rate. An empty
// input yields an empty buffer.
func Concatenate(segments []Segment) ([]float32, error) {
	if len(segments) == 0 {
		return []float32{}, nil
	}

	_, total, err := checkRates(segments)
	if err != nil {
		return nil, err
	}

	out := make([]float32, 0, total)
	for _, seg := range segments {
		out = append(out, seg.Samples...)
	}
	return out, nil
}

// ConcatenateWithPauses joins segments with a silence gap of pauseMs
// milliseconds between each adjacent pair. No silence is added before the
// first segment or after the last. The silence duration is derived from the
// segments' shared sample rate.
func ConcatenateWithPauses(segments []Segment, pauseMs int) ([]float32, error) {
	if len(segments) == 0 {
		return []float32{}, nil
	}

	rate, total, err := checkRates(segments)
	if err != nil {
		return nil, err
	}

	silence := Silence(pauseMs, rate)
	out := make([]float32, 0, total+len(silence)*(len(segments)-1))

	for i, seg := range segments {
		if i > 0 {
			out = append(out, silence...)
		}
		out = append(out, seg.Samples...)
	}
	return out, nil
}

// Silence returns a zeroed sample buffer of the given duration at the given rate.
func Silence(durationMs int, sampleRate int) []float32 {
	if durationMs <= 0 || sampleRate <= 0 {
		return []float32{}
	}
	return make([]float32, durationMs*sampleRate/1000)
}

// checkRates verifies that all segments share one sample rate and returns that
// rate together with the total sample count.
func checkRates(segments []Segment) (rate, total int, err error) {
	rate = segments[0].SampleRate
	for i, seg := range segments {
		if seg.SampleRate != rate {
			return 0, 0, fmt.Errorf("segment %d has rate %d, expected %d: %w",
				i, seg.SampleRate, rate, ErrSampleRateMismatch)
		}
		total += len(seg.Samples)
	}
	return rate, total, nil
}
