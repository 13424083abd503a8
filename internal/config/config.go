package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	GoogleTTS  GoogleTTSConfig  `yaml:"google_tts"`
	Audio      AudioConfig      `yaml:"audio"`
	Prompts    PromptsConfig    `yaml:"prompts"`
	Output     OutputConfig     `yaml:"output"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GenerationConfig contains generation boundary configuration
type GenerationConfig struct {
	Backend       string `yaml:"backend"`  // "csm" or "googletts"
	Endpoint      string `yaml:"endpoint"` // CSM inference server base URL
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	MaxLengthMs   int    `yaml:"max_audio_length_ms"`
	HistoryLimit  int    `yaml:"history_limit"`
}

// GoogleTTSConfig contains the Cloud TTS fallback backend configuration
type GoogleTTSConfig struct {
	CredentialsFile string         `yaml:"credentials_file"`
	Language        string         `yaml:"language"`
	SampleRate      int            `yaml:"sample_rate"`
	Voices          map[int]string `yaml:"voices"`
}

// AudioConfig contains audio assembly parameters
type AudioConfig struct {
	PauseMs      int    `yaml:"pause_ms"`
	OutputFormat string `yaml:"output_format"` // "wav" or "ulaw"
}

// PromptsConfig contains reference prompt source configuration
type PromptsConfig struct {
	CacheDir   string `yaml:"cache_dir"`
	HubBaseURL string `yaml:"hub_base_url"`
	Token      string `yaml:"token"`
}

// OutputConfig contains output file management settings
type OutputConfig struct {
	Directory       string `yaml:"directory"`
	SaveTranscripts bool   `yaml:"save_transcripts"`
	SaveMetadata    bool   `yaml:"save_metadata"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file, then overlays secrets from
// the environment (a .env file is honored when present).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnv overlays secret values from the environment so they never have to
// live in the YAML file.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("CSM_API_KEY"); v != "" {
		c.Generation.APIKey = v
	}
	if v := os.Getenv("HF_TOKEN"); v != "" {
		c.Prompts.Token = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.GoogleTTS.CredentialsFile == "" {
		c.GoogleTTS.CredentialsFile = v
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Prompts.Validate(); err != nil {
		return fmt.Errorf("prompts config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates generation configuration
func (g *GenerationConfig) Validate() error {
	switch g.Backend {
	case "csm":
		if g.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the csm backend")
		}
	case "googletts":
	default:
		return fmt.Errorf("backend must be 'csm' or 'googletts', got '%s'", g.Backend)
	}

	if g.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", g.Timeout)
	}

	if g.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", g.MaxRetries)
	}

	if g.MaxLengthMs < 1000 {
		return fmt.Errorf("max_audio_length_ms must be at least 1000, got %d", g.MaxLengthMs)
	}

	if g.HistoryLimit < 1 || g.HistoryLimit > 10 {
		return fmt.Errorf("history_limit must be between 1 and 10, got %d", g.HistoryLimit)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.PauseMs < 0 {
		return fmt.Errorf("pause_ms cannot be negative, got %d", a.PauseMs)
	}

	validFormats := map[string]bool{"wav": true, "ulaw": true}
	if !validFormats[a.OutputFormat] {
		return fmt.Errorf("output_format must be 'wav' or 'ulaw', got '%s'", a.OutputFormat)
	}

	return nil
}

// Validate validates prompts configuration
func (p *PromptsConfig) Validate() error {
	if p.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty")
	}
	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	if o.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}
	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the generation timeout as a time.Duration
func (g *GenerationConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(g.Timeout) * time.Second
}
