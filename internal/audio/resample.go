package audio

import "fmt"

// Resample converts samples from one rate to another using linear
// interpolation. It returns the input slice unchanged when the rates already
// match, so callers can resample unconditionally.
func Resample(samples []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive, got %d -> %d", fromRate, toRate)
	}

	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}

	outLen := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float32, outLen)
	step := float64(fromRate) / float64(toRate)

	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}

	return out, nil
}
