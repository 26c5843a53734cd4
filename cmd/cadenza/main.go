// Command cadenza is the main entry point for the Cadenza voice-controlled
// music player.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mveroni/cadenza/internal/app"
	"github.com/mveroni/cadenza/internal/config"
	"github.com/mveroni/cadenza/internal/observe"
	"github.com/mveroni/cadenza/pkg/audio/capture"
	"github.com/mveroni/cadenza/pkg/catalog/subsonic"
	"github.com/mveroni/cadenza/pkg/recognizer"
	recstub "github.com/mveroni/cadenza/pkg/recognizer/mock"
	"github.com/mveroni/cadenza/pkg/recognizer/vosk"
	"github.com/mveroni/cadenza/pkg/recognizer/whisper"
	"github.com/mveroni/cadenza/pkg/wakeword"
	wakestub "github.com/mveroni/cadenza/pkg/wakeword/mock"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "list audio input devices and exit")
	flag.Parse()

	if *listDevices {
		return printInputDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cadenza: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cadenza: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("cadenza starting",
		"config", *configPath,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Engine registry ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinEngines(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Catalog connectivity check ────────────────────────────────────────────
	if err := providers.Catalog.Ping(ctx); err != nil {
		slog.Warn("catalog server unreachable, playback commands will fail until it recovers",
			"base_url", cfg.Catalog.BaseURL, "err", err)
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, logger)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Engine wiring ─────────────────────────────────────────────────────────────

// registerBuiltinEngines wires the recognition engines and wake-word
// classifiers that ship with Cadenza into reg.
func registerBuiltinEngines(reg *config.Registry) {
	reg.RegisterEngine(config.EngineVosk, func(cfg config.RecognitionConfig) (recognizer.Engine, error) {
		var opts []vosk.Option
		if cfg.SampleRate > 0 {
			opts = append(opts, vosk.WithSampleRate(cfg.SampleRate))
		}
		if cfg.Vosk.MaxAlternatives > 0 {
			opts = append(opts, vosk.WithMaxAlternatives(cfg.Vosk.MaxAlternatives))
		}
		return vosk.New(cfg.Vosk.ModelPath, opts...)
	})

	reg.RegisterEngine(config.EngineWhisper, func(cfg config.RecognitionConfig) (recognizer.Engine, error) {
		var opts []whisper.Option
		if cfg.Whisper.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Whisper.Language))
		}
		return whisper.New(cfg.Whisper.ModelPath, opts...)
	})

	reg.RegisterEngine(config.EngineStub, func(config.RecognitionConfig) (recognizer.Engine, error) {
		return &recstub.Engine{}, nil
	})

	reg.RegisterClassifier("energy", func(cfg config.WakeWordConfig) (wakeword.Classifier, error) {
		word := "cadenza"
		if len(cfg.WakeWords) > 0 {
			word = cfg.WakeWords[0].Name
		}
		return &wakestub.Classifier{Word: word}, nil
	})
}

// buildProviders instantiates the microphone, classifier, recognition engines
// and catalog client named in cfg.
//
// A recognition engine that fails to construct (usually a missing model file)
// is replaced by the stub engine with a logged warning so the rest of the
// pipeline stays operable.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	device, err := capture.NewPortAudioDevice(capture.DeviceConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		ChunkSize:   cfg.Audio.ChunkSize,
		DeviceIndex: cfg.Audio.DeviceIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	ps.Device = device

	classifier, err := reg.CreateClassifier("energy", cfg.WakeWord)
	if err != nil {
		return nil, fmt.Errorf("create wake-word classifier: %w", err)
	}
	ps.Classifier = classifier

	ps.Streaming, ps.Batch = assignEngines(reg, cfg.Recognition)

	ps.Catalog = subsonic.New(subsonic.Config{
		BaseURL:       cfg.Catalog.BaseURL,
		Username:      cfg.Catalog.Username,
		Password:      cfg.Catalog.Password,
		ClientName:    cfg.Catalog.ClientName,
		Timeout:       time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second,
		RetryAttempts: cfg.Catalog.RetryAttempts,
		CacheTTL:      time.Duration(cfg.Catalog.CacheTTLSeconds) * time.Second,
		RequestHook: func(_, status string) {
			observe.DefaultMetrics().RecordCatalogRequest(context.Background(), status)
		},
	}, slog.Default())

	return ps, nil
}

// assignEngines builds the configured primary/fallback engine pair and maps
// each onto the recognizer's streaming and batch slots. Whisper always takes
// the batch slot; any other engine prefers the streaming slot.
func assignEngines(reg *config.Registry, cfg config.RecognitionConfig) (streaming, batch recognizer.Engine) {
	for _, name := range []config.EngineName{cfg.PrimaryEngine, cfg.FallbackEngine} {
		eng := buildEngine(reg, name, cfg)
		if name == config.EngineWhisper || streaming != nil {
			batch = eng
		} else {
			streaming = eng
		}
	}
	return streaming, batch
}

// buildEngine creates the named engine, substituting the stub on failure.
func buildEngine(reg *config.Registry, name config.EngineName, cfg config.RecognitionConfig) recognizer.Engine {
	eng, err := reg.CreateEngine(name, cfg)
	if err != nil {
		slog.Warn("recognition engine unavailable, substituting stub",
			"engine", name, "err", err)
		stub, stubErr := reg.CreateEngine(config.EngineStub, cfg)
		if stubErr != nil {
			panic("stub engine must always be constructible: " + stubErr.Error())
		}
		return stub
	}
	slog.Info("recognition engine ready", "engine", name)
	return eng
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Cadenza — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Primary engine", string(cfg.Recognition.PrimaryEngine))
	printField("Fallback engine", string(cfg.Recognition.FallbackEngine))
	printField("Wake words", fmt.Sprintf("%d", len(cfg.WakeWord.WakeWords)))
	printField("Sample rate", fmt.Sprintf("%d Hz", cfg.Audio.SampleRate))
	printField("Catalog", cfg.Catalog.BaseURL)
	if cfg.Server.MetricsAddr != "" {
		printField("Metrics", cfg.Server.MetricsAddr)
	} else {
		printField("Metrics", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", name, value)
}

// ── Devices ───────────────────────────────────────────────────────────────────

func printInputDevices() int {
	devices, err := capture.ListInputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cadenza: %v\n", err)
		return 1
	}
	for _, d := range devices {
		fmt.Printf("%3d  %s (%d ch, %.0f Hz)\n", d.Index, d.Name, d.Channels, d.SampleRate)
	}
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
