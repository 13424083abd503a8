package apps

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kikugo/sesame-csm/internal/audio"
	"github.com/kikugo/sesame-csm/internal/config"
)

// OutputWriter persists generation results: the assembled audio plus
// optional transcript and metadata sidecar files.
type OutputWriter struct {
	logger   *slog.Logger
	output   config.OutputConfig
	audioCfg config.AudioConfig
}

// NewOutputWriter creates an output writer rooted at the configured directory.
func NewOutputWriter(logger *slog.Logger, output config.OutputConfig, audioCfg config.AudioConfig) *OutputWriter {
	return &OutputWriter{logger: logger, output: output, audioCfg: audioCfg}
}

// transcriptEntry is one line of the saved transcript.
type transcriptEntry struct {
	Index    int     `json:"index"`
	Speaker  int     `json:"speaker"`
	Text     string  `json:"text"`
	Duration float64 `json:"duration_seconds"`
}

// resultMetadata is the metadata sidecar schema.
type resultMetadata struct {
	Name         string    `json:"name"`
	SampleRate   int       `json:"sample_rate"`
	Segments     int       `json:"segments"`
	AudioSeconds float64   `json:"audio_seconds"`
	Format       string    `json:"format"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// SaveResult writes the assembled audio under the configured output
// directory, plus transcript and metadata JSON when enabled. The audio format
// follows the configured output format.
func (w *OutputWriter) SaveResult(name string, samples []float32, segments []audio.Segment, sampleRate int) error {
	if err := os.MkdirAll(w.output.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	audioPath, err := w.writeAudio(name, samples, sampleRate)
	if err != nil {
		return err
	}
	w.logger.Info("Audio saved", slog.String("path", audioPath))

	if w.output.SaveTranscripts {
		if err := w.writeTranscript(name, segments); err != nil {
			return err
		}
	}

	if w.output.SaveMetadata {
		meta := resultMetadata{
			Name:         name,
			SampleRate:   sampleRate,
			Segments:     len(segments),
			AudioSeconds: float64(len(samples)) / float64(sampleRate),
			Format:       w.audioCfg.OutputFormat,
			GeneratedAt:  time.Now().UTC(),
		}
		if err := w.writeJSON(name+".meta.json", meta); err != nil {
			return err
		}
	}

	return nil
}

// SaveSegment writes one segment as a standalone audio file.
func (w *OutputWriter) SaveSegment(name string, seg audio.Segment) error {
	if err := os.MkdirAll(w.output.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	_, err := w.writeAudio(name, seg.Samples, seg.SampleRate)
	return err
}

func (w *OutputWriter) writeAudio(name string, samples []float32, sampleRate int) (string, error) {
	switch w.audioCfg.OutputFormat {
	case "ulaw":
		path := filepath.Join(w.output.Directory, name+".ulaw")
		data, err := audio.EncodeUlaw(samples, sampleRate)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, nil
	default:
		path := filepath.Join(w.output.Directory, name+".wav")
		if err := audio.SaveWAVFile(samples, path, sampleRate); err != nil {
			return "", err
		}
		return path, nil
	}
}

func (w *OutputWriter) writeTranscript(name string, segments []audio.Segment) error {
	entries := make([]transcriptEntry, len(segments))
	for i, seg := range segments {
		entries[i] = transcriptEntry{
			Index:    i,
			Speaker:  seg.Speaker,
			Text:     seg.Text,
			Duration: seg.Duration().Seconds(),
		}
	}
	return w.writeJSON(name+".transcript.json", entries)
}

func (w *OutputWriter) writeJSON(filename string, v any) error {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filename, err)
	}

	path := filepath.Join(w.output.Directory, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
