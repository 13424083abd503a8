package audio

import (
	"fmt"

	"github.com/zaf/g711"
)

// TelephonyRate is the sample rate required by G.711 telephony codecs.
const TelephonyRate = 8000

// EncodeUlaw converts float32 samples at any rate into ITU-T G.711 µ-law
// bytes at 8 kHz, resampling first when needed. Useful for feeding assembled
// speech into telephony systems.
func EncodeUlaw(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	narrow, err := Resample(samples, sampleRate, TelephonyRate)
	if err != nil {
		return nil, fmt.Errorf("resample to %d Hz: %w", TelephonyRate, err)
	}

	// g711 operates on little-endian 16-bit LPCM bytes.
	pcm := make([]byte, len(narrow)*2)
	for i, s := range narrow {
		v := floatToPCM(s)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(uint16(v) >> 8)
	}

	return g711.EncodeUlaw(pcm), nil
}

// DecodeUlaw converts µ-law bytes into float32 samples at 8 kHz.
func DecodeUlaw(data []byte) []float32 {
	pcm := g711.DecodeUlaw(data)
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		samples[i] = float32(v) / 32768.0
	}
	return samples
}
