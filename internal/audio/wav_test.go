package audio

import (
	"math"
	"path/filepath"
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	samples := make([]float32, 2400)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 24000))
	}

	data, err := EncodeWAV(samples, 24000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(samples)*2 {
		t.Errorf("Expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 24000 {
		t.Errorf("Expected rate 24000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}

	// 16-bit quantization allows a small round trip error.
	for i := range samples {
		if diff := math.Abs(float64(samples[i] - decoded[i])); diff > 1.0/32000 {
			t.Fatalf("Sample %d round trip error too large: %f", i, diff)
		}
	}
}

func TestEncodeWAVRejectsEmptyInput(t *testing.T) {
	if _, err := EncodeWAV(nil, 24000); err == nil {
		t.Error("Expected error for empty samples")
	}
	if _, err := EncodeWAV([]float32{0.1}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestEncodeWAVClipsOutOfRange(t *testing.T) {
	data, err := EncodeWAV([]float32{2.0, -2.0}, 24000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, _, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decoded[0] < 0.99 {
		t.Errorf("Positive overdrive not clipped to full scale: %f", decoded[0])
	}
	if decoded[1] > -0.99 {
		t.Errorf("Negative overdrive not clipped to full scale: %f", decoded[1])
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav file")); err == nil {
		t.Error("Expected error for short data")
	}

	bad := make([]byte, 64)
	copy(bad, "RIFFxxxxNOPE")
	if _, _, err := DecodeWAV(bad); err == nil {
		t.Error("Expected error for invalid format")
	}
}

func TestGetWAVInfo(t *testing.T) {
	samples := make([]float32, 48000)
	data, err := EncodeWAV(samples, 24000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	info, err := GetWAVInfo(data)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}

	if info.SampleRate != 24000 {
		t.Errorf("Expected sample rate 24000, got %d", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}
	if info.Duration < 1.99 || info.Duration > 2.01 {
		t.Errorf("Expected ~2s duration, got %f", info.Duration)
	}
}

func TestResample(t *testing.T) {
	samples := make([]float32, 48000)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 100 * float64(i) / 48000))
	}

	down, err := Resample(samples, 48000, 24000)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if len(down) != 24000 {
		t.Errorf("Expected 24000 samples, got %d", len(down))
	}

	same, err := Resample(samples, 24000, 24000)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if len(same) != len(samples) {
		t.Errorf("Identity resample changed length: %d != %d", len(same), len(samples))
	}

	if _, err := Resample(samples, 0, 24000); err == nil {
		t.Error("Expected error for zero source rate")
	}
}

func TestLoadSaveWAVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "test.wav")

	samples := make([]float32, 24000)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 220 * float64(i) / 24000))
	}

	if err := SaveWAVFile(samples, path, 24000); err != nil {
		t.Fatalf("SaveWAVFile failed: %v", err)
	}

	loaded, err := LoadWAVFile(path, 24000)
	if err != nil {
		t.Fatalf("LoadWAVFile failed: %v", err)
	}
	if len(loaded) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(loaded))
	}

	// Loading with a different target rate resamples.
	half, err := LoadWAVFile(path, 12000)
	if err != nil {
		t.Fatalf("LoadWAVFile with resample failed: %v", err)
	}
	if len(half) != 12000 {
		t.Errorf("Expected 12000 resampled samples, got %d", len(half))
	}
}

func TestUlawRoundTrip(t *testing.T) {
	samples := make([]float32, 8000)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*300*float64(i)/8000))
	}

	encoded, err := EncodeUlaw(samples, 8000)
	if err != nil {
		t.Fatalf("EncodeUlaw failed: %v", err)
	}
	if len(encoded) != len(samples) {
		t.Errorf("Expected %d ulaw bytes, got %d", len(samples), len(encoded))
	}

	decoded := DecodeUlaw(encoded)
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}

	// µ-law is lossy but should stay in the right ballpark.
	for i := 0; i < len(samples); i += 100 {
		if diff := math.Abs(float64(samples[i] - decoded[i])); diff > 0.05 {
			t.Fatalf("Sample %d error too large after ulaw round trip: %f", i, diff)
		}
	}
}
