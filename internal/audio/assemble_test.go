package audio

import (
	"errors"
	"testing"
)

func makeSegment(n int, rate int, value float32) Segment {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return NewSegment("test", 0, samples, rate)
}

func TestConcatenateEmpty(t *testing.T) {
	out, err := Concatenate(nil)
	if err != nil {
		t.Fatalf("Concatenate failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected empty buffer, got %d samples", len(out))
	}
}

func TestConcatenateSingle(t *testing.T) {
	seg := makeSegment(100, 24000, 0.5)

	out, err := Concatenate([]Segment{seg})
	if err != nil {
		t.Fatalf("Concatenate failed: %v", err)
	}

	if len(out) != 100 {
		t.Fatalf("Expected 100 samples, got %d", len(out))
	}
	for i, s := range out {
		if s != 0.5 {
			t.Fatalf("Sample %d changed: got %f", i, s)
		}
	}
}

func TestConcatenateOrder(t *testing.T) {
	a := makeSegment(10, 24000, 0.1)
	b := makeSegment(20, 24000, 0.2)

	out, err := Concatenate([]Segment{a, b})
	if err != nil {
		t.Fatalf("Concatenate failed: %v", err)
	}

	if len(out) != 30 {
		t.Fatalf("Expected 30 samples, got %d", len(out))
	}
	if out[0] != 0.1 {
		t.Errorf("First segment not first in output")
	}
	if out[29] != 0.2 {
		t.Errorf("Second segment not last in output")
	}
}

func TestConcatenateSampleRateMismatch(t *testing.T) {
	a := makeSegment(10, 24000, 0.1)
	b := makeSegment(10, 16000, 0.2)

	_, err := Concatenate([]Segment{a, b})
	if !errors.Is(err, ErrSampleRateMismatch) {
		t.Errorf("Expected ErrSampleRateMismatch, got %v", err)
	}

	_, err = ConcatenateWithPauses([]Segment{a, b}, 100)
	if !errors.Is(err, ErrSampleRateMismatch) {
		t.Errorf("Expected ErrSampleRateMismatch with pauses, got %v", err)
	}
}

func TestConcatenateWithPauses(t *testing.T) {
	rate := 24000
	pauseMs := 500
	segments := []Segment{
		makeSegment(1000, rate, 0.1),
		makeSegment(2000, rate, 0.2),
		makeSegment(3000, rate, 0.3),
	}

	out, err := ConcatenateWithPauses(segments, pauseMs)
	if err != nil {
		t.Fatalf("ConcatenateWithPauses failed: %v", err)
	}

	pauseSamples := pauseMs * rate / 1000
	expected := 1000 + 2000 + 3000 + 2*pauseSamples
	if len(out) != expected {
		t.Errorf("Expected %d samples, got %d", expected, len(out))
	}

	// Gap between first and second segment must be silent.
	if out[1000] != 0 {
		t.Errorf("Expected silence after first segment, got %f", out[1000])
	}
	if out[1000+pauseSamples] != 0.2 {
		t.Errorf("Second segment misplaced: got %f", out[1000+pauseSamples])
	}
}

func TestConcatenateWithPausesSingleSegment(t *testing.T) {
	seg := makeSegment(500, 24000, 0.4)

	out, err := ConcatenateWithPauses([]Segment{seg}, 1000)
	if err != nil {
		t.Fatalf("ConcatenateWithPauses failed: %v", err)
	}

	// No pause before or after a lone segment.
	if len(out) != 500 {
		t.Errorf("Expected 500 samples, got %d", len(out))
	}
}

func TestSilence(t *testing.T) {
	s := Silence(500, 24000)
	if len(s) != 12000 {
		t.Errorf("Expected 12000 samples for 500ms at 24kHz, got %d", len(s))
	}
	for _, v := range s {
		if v != 0 {
			t.Fatal("Silence buffer contains non-zero samples")
		}
	}

	if len(Silence(0, 24000)) != 0 {
		t.Error("Zero duration should yield empty buffer")
	}
}

func TestSegmentDuration(t *testing.T) {
	seg := makeSegment(24000, 24000, 0)
	if d := seg.Duration().Seconds(); d < 0.999 || d > 1.001 {
		t.Errorf("Expected ~1s duration, got %f", d)
	}

	var zero Segment
	if zero.Duration() != 0 {
		t.Error("Zero segment should have zero duration")
	}
}
