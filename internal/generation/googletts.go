package generation

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/kikugo/sesame-csm/internal/audio"
)

// GoogleTTS is a stateless Generator backed by the Google Cloud
// Text-to-Speech API. It maps speaker ids to fixed Cloud voices and ignores
// the conditioning context entirely, since the API carries no notion of
// acoustic history. It exists as a fallback backend when no CSM inference
// server is reachable.
type GoogleTTS struct {
	client     *texttospeech.Client
	voices     map[int]string
	language   string
	sampleRate int
}

// GoogleTTSConfig configures the Cloud TTS backend.
type GoogleTTSConfig struct {
	// CredentialsFile is an optional path to a service account JSON key.
	// When empty, application default credentials are used.
	CredentialsFile string
	// Voices maps speaker ids to Cloud voice names, e.g. "en-US-Neural2-C".
	Voices map[int]string
	// Language is the BCP-47 language code, e.g. "en-US".
	Language string
	// SampleRate is the requested output rate in Hz.
	SampleRate int
}

// NewGoogleTTS creates the Cloud TTS backend.
func NewGoogleTTS(ctx context.Context, cfg GoogleTTSConfig) (*GoogleTTS, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud TTS client: %w", err)
	}

	return &GoogleTTS{
		client:     client,
		voices:     cfg.Voices,
		language:   cfg.Language,
		sampleRate: cfg.SampleRate,
	}, nil
}

// Generate synthesizes the request text with the voice mapped to the
// request's speaker. Context and MaxLengthMs are ignored by this backend.
func (g *GoogleTTS) Generate(ctx context.Context, req Request) ([]float32, error) {
	voice := &texttospeechpb.VoiceSelectionParams{
		LanguageCode: g.language,
		SsmlGender:   texttospeechpb.SsmlVoiceGender_NEUTRAL,
	}
	if name, ok := g.voices[req.Speaker]; ok {
		voice.Name = name
	}

	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: voice,
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(g.sampleRate),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Cloud TTS synthesis failed: %w", err)
	}

	// LINEAR16 responses arrive as WAV.
	samples, rate, err := audio.DecodeWAV(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Cloud TTS audio: %w", err)
	}

	if rate != g.sampleRate {
		samples, err = audio.Resample(samples, rate, g.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to resample Cloud TTS audio: %w", err)
		}
	}

	return samples, nil
}

// SampleRate reports the configured output rate.
func (g *GoogleTTS) SampleRate() int {
	return g.sampleRate
}

// Close shuts down the underlying gRPC connection.
func (g *GoogleTTS) Close() error {
	return g.client.Close()
}
