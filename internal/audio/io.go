package audio

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadWAVFile reads a mono 16-bit WAV file and resamples it to targetRate.
// Resampling is a no-op when the file already matches the target rate.
func LoadWAVFile(path string, targetRate int) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file %s: %w", path, err)
	}

	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	resampled, err := Resample(samples, rate, targetRate)
	if err != nil {
		return nil, fmt.Errorf("failed to resample %s: %w", path, err)
	}

	return resampled, nil
}

// SaveWAVFile encodes samples as 16-bit mono WAV and writes them to path,
// creating parent directories as needed.
func SaveWAVFile(samples []float32, path string, sampleRate int) error {
	data, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		return fmt.Errorf("failed to encode audio for %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write audio file %s: %w", path, err)
	}

	return nil
}
