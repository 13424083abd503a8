package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/kikugo/sesame-csm/internal/apps"
	"github.com/kikugo/sesame-csm/internal/config"
	"github.com/kikugo/sesame-csm/internal/generation"
	"github.com/kikugo/sesame-csm/internal/metrics"
	"github.com/kikugo/sesame-csm/internal/prompts"
	"github.com/kikugo/sesame-csm/internal/server"
	"github.com/kikugo/sesame-csm/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "sesame-csm"
	serviceVersion    = "1.0.0"
)

// appRegistry maps app names to their entry points. The registry is a plain
// static map; adding an app means adding a line here.
var appRegistry = map[string]func(context.Context, *apps.Env) error{
	"story":    apps.RunStory,
	"dialogue": apps.RunDialogue,
	"chat":     apps.RunChat,
	"serve":    runServe,
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	appName := flag.Arg(0)
	run, ok := appRegistry[appName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Usage: csm-apps [-config path] <app>\nAvailable apps: %v\n", appNames())
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("app", appName),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("backend", cfg.Generation.Backend),
		slog.String("endpoint", cfg.Generation.Endpoint),
		slog.Int("history_limit", cfg.Generation.HistoryLimit),
		slog.Int("max_audio_length_ms", cfg.Generation.MaxLengthMs),
		slog.String("output_format", cfg.Audio.OutputFormat),
		slog.String("output_directory", cfg.Output.Directory),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Cancel the root context on SIGINT/SIGTERM; the running app unwinds
	// from its current generation call.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	generator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize generation backend", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer generator.Close()

	fetcher := prompts.NewFetcher(cfg.Prompts.HubBaseURL, cfg.Prompts.CacheDir, cfg.Prompts.Token).
		WithMetrics(appMetrics)
	promptPaths, err := fetcher.FetchAll(ctx)
	if err != nil {
		logger.Error("Failed to fetch reference prompts", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Reference prompts ready", slog.Int("prompts", len(promptPaths)))

	env := &apps.Env{
		Logger:      logger,
		Config:      cfg,
		Metrics:     appMetrics,
		Generator:   generator,
		PromptPaths: promptPaths,
		Output:      apps.NewOutputWriter(logger, cfg.Output, cfg.Audio),
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
	}

	if err := run(ctx, env); err != nil {
		logger.Error("App failed", slog.String("app", appName), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Done", slog.String("app", appName))
}

// newGenerator builds the configured generation backend.
func newGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.Generator, error) {
	switch cfg.Generation.Backend {
	case "googletts":
		logger.Info("Using Google Cloud TTS backend")
		return generation.NewGoogleTTS(ctx, generation.GoogleTTSConfig{
			CredentialsFile: cfg.GoogleTTS.CredentialsFile,
			Language:        cfg.GoogleTTS.Language,
			SampleRate:      cfg.GoogleTTS.SampleRate,
			Voices:          cfg.GoogleTTS.Voices,
		})
	default:
		client, err := generation.NewClient(generation.Config{
			Endpoint:      cfg.Generation.Endpoint,
			APIKey:        cfg.Generation.APIKey,
			Timeout:       cfg.Generation.GetTimeoutDuration(),
			MaxRetries:    cfg.Generation.MaxRetries,
			MaxConcurrent: cfg.Generation.MaxConcurrent,
		})
		if err != nil {
			return nil, err
		}
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to inference server: %w", err)
		}
		logger.Info("Connected to CSM inference server",
			slog.String("endpoint", cfg.Generation.Endpoint),
			slog.Int("sample_rate", client.SampleRate()),
		)
		return client, nil
	}
}

// runServe starts the HTTP synthesis API and blocks until the context ends.
func runServe(ctx context.Context, env *apps.Env) error {
	if !env.Config.HTTP.Enabled {
		return fmt.Errorf("http server is disabled in configuration")
	}

	// The serve cast: both catalog voices, speaker ids 0 and 1.
	cast := []struct {
		speaker int
		name    string
		prompt  string
	}{
		{0, "Aria", "conversational_a"},
		{1, "Ben", "conversational_b"},
	}

	refs := make([]session.ReferencePrompt, 0, len(cast))
	for _, c := range cast {
		prompt, err := env.ReferencePrompt(c.prompt, c.speaker, c.name)
		if err != nil {
			return err
		}
		refs = append(refs, prompt)
	}

	httpServer := server.NewHTTPServer(env.Config.HTTP, env.Logger, env.Config,
		env.Generator, refs, env.Metrics)
	if err := httpServer.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Stop(shutdownCtx)
}

func appNames() []string {
	names := make([]string, 0, len(appRegistry))
	for name := range appRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
