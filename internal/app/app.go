// Package app wires all Cadenza subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the processing loop until the context is
// cancelled, and Shutdown tears everything down in order.
//
// Hardware-backed components (microphone, wake-word classifier, recognition
// engines, catalog client) are injected through Providers so tests can run
// the full pipeline on scripted doubles.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mveroni/cadenza/internal/config"
	"github.com/mveroni/cadenza/internal/interpret"
	"github.com/mveroni/cadenza/internal/observe"
	"github.com/mveroni/cadenza/internal/player"
	"github.com/mveroni/cadenza/internal/session"
	"github.com/mveroni/cadenza/pkg/audio"
	"github.com/mveroni/cadenza/pkg/audio/capture"
	"github.com/mveroni/cadenza/pkg/catalog"
	"github.com/mveroni/cadenza/pkg/recognizer"
	"github.com/mveroni/cadenza/pkg/wakeword"
)

// statsInterval is how often the running pipeline logs its counters.
const statsInterval = time.Minute

// Providers holds the pluggable components the pipeline is built around.
// All fields are required; main.go populates them via the config registry,
// tests inject doubles directly.
type Providers struct {
	Device     capture.Device
	Classifier wakeword.Classifier
	Streaming  recognizer.Engine
	Batch      recognizer.Engine
	Catalog    catalog.Client
}

// App owns all subsystem lifetimes and orchestrates the voice pipeline:
// capture → wake-word gate → recognizer → session machine → interpreter →
// player.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *observe.Metrics

	stage      *capture.Stage
	gate       *wakeword.Gate
	recognizer *recognizer.Recognizer
	machine    *session.Machine
	interp     *interpret.Interpreter
	controller *player.Controller

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// New creates an App by wiring all subsystems together. The initial catalog
// cache load happens synchronously; a failure is logged and retried by the
// refresh loop rather than aborting startup.
func New(ctx context.Context, cfg *config.Config, providers *Providers, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if providers == nil {
		return nil, fmt.Errorf("app: providers are required")
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: observe.DefaultMetrics(),
	}

	// ── 1. Capture stage ─────────────────────────────────────────────────
	a.stage = capture.NewStage(providers.Device, capture.Config{
		SampleRate:     cfg.Audio.SampleRate,
		NoiseReduction: cfg.Audio.NoiseReduction,
		Normalization:  cfg.Audio.Normalization,
		VADThreshold:   cfg.Audio.VADThreshold,
	}, log)

	// ── 2. Wake-word gate ────────────────────────────────────────────────
	words := make([]wakeword.WordConfig, 0, len(cfg.WakeWord.WakeWords))
	for _, w := range cfg.WakeWord.WakeWords {
		words = append(words, wakeword.WordConfig{
			Name:      w.Name,
			ModelPath: w.ModelPath,
			Threshold: w.Threshold,
		})
	}
	a.gate = wakeword.NewGate(providers.Classifier, wakeword.Config{
		Words:            words,
		DefaultThreshold: cfg.WakeWord.DefaultThreshold,
		SampleRate:       cfg.Audio.SampleRate,
	}, log)

	// ── 3. Recognizer ────────────────────────────────────────────────────
	a.recognizer = recognizer.New(
		providers.Streaming,
		providers.Batch,
		string(cfg.Recognition.PrimaryEngine),
		log,
	)

	// ── 4. Interpreter + player ──────────────────────────────────────────
	a.interp = interpret.New(providers.Catalog, cfg.Interpreter.ConfidenceThreshold, log)
	if err := a.interp.Refresh(ctx); err != nil {
		log.Warn("initial catalog refresh failed, will retry", "err", err)
	}
	a.controller = player.New(providers.Catalog, player.Config{
		InitialVolume: cfg.Playback.InitialVolume,
	}, log)

	// ── 5. Session machine ───────────────────────────────────────────────
	timeout := time.Duration(cfg.WakeWord.TimeoutSeconds) * time.Second
	a.machine = session.New(a.recognizer, a.onResult, a.onTimeout,
		session.WithTimeout(timeout),
		session.WithLogger(log),
	)

	// ── 6. Hook the stages together ──────────────────────────────────────
	a.stage.Subscribe(func(frame audio.Frame, voice bool) {
		a.metrics.RecordFrame(context.Background(), "capture")
		a.gate.Process(frame)
		// Feed is a no-op outside an open command window.
		a.recognizer.Feed(frame)
	})
	a.stage.OnDrop(func() { a.metrics.RecordDrop(context.Background(), "capture") })
	a.gate.OnDrop(func() { a.metrics.RecordDrop(context.Background(), "wakeword") })
	a.gate.OnDetection(a.onWake)
	a.recognizer.OnResult(a.machine.HandleResult)

	return a, nil
}

// ─── Pipeline callbacks ──────────────────────────────────────────────────────

// onWake opens a command window for a detection event. The active-session
// gauge only moves when the machine is idle; detections inside an open
// window are counted by the machine as ignored.
func (a *App) onWake(ev wakeword.Event) {
	ctx := context.Background()
	a.metrics.RecordWake(ctx, ev.Word)
	if a.machine.State() == session.Idle {
		a.metrics.ActiveSessions.Add(ctx, 1)
	}
	a.machine.HandleWake(ev.Word)
}

// onResult runs when the session machine accepts a recognition result:
// interpret the text, execute the command, log the outcome.
func (a *App) onResult(res recognizer.Result) {
	ctx := context.Background()
	a.metrics.ActiveSessions.Add(ctx, -1)
	a.metrics.RecordRecognition(ctx, res.Engine, "ok", res.Latency)

	cmd := a.interp.Process(ctx, res.Text)
	a.metrics.RecordCommand(ctx, string(cmd.Type))

	result := a.controller.Execute(ctx, cmd)
	if result.Success {
		a.log.Info("command executed",
			"text", res.Text,
			"type", cmd.Type,
			"confidence", cmd.Confidence,
			"message", result.Message,
		)
	} else {
		a.log.Warn("command failed",
			"text", res.Text,
			"type", cmd.Type,
			"message", result.Message,
		)
	}
}

// onTimeout runs when a command window expires without a usable result.
func (a *App) onTimeout() {
	a.metrics.ActiveSessions.Add(context.Background(), -1)
	a.log.Info("command window timed out")
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the pipeline and blocks until ctx is cancelled. It serves
// Prometheus metrics on Server.MetricsAddr (when set), refreshes the
// interpreter's catalog cache periodically, and logs pipeline counters.
func (a *App) Run(ctx context.Context) error {
	// Start downstream-first so no frame meets a stopped consumer.
	if err := a.recognizer.Start(); err != nil {
		return fmt.Errorf("app: start recognizer: %w", err)
	}
	a.closers = append(a.closers, a.recognizer.Stop)

	if err := a.gate.Start(); err != nil {
		return fmt.Errorf("app: start wake-word gate: %w", err)
	}
	a.closers = append(a.closers, a.gate.Stop)

	if err := a.stage.Start(); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}
	a.closers = append(a.closers, a.stage.Stop)
	a.closers = append(a.closers, a.machine.Close)

	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}

		g.Go(func() error {
			a.log.Info("metrics endpoint listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	g.Go(func() error {
		a.refreshLoop(gctx)
		return nil
	})
	g.Go(func() error {
		a.statsLoop(gctx)
		return nil
	})

	a.log.Info("pipeline running",
		"wake_words", len(a.cfg.WakeWord.WakeWords),
		"primary_engine", a.cfg.Recognition.PrimaryEngine,
	)

	err := g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	return ctx.Err()
}

// refreshLoop re-reads the catalog entity caches at the configured interval.
func (a *App) refreshLoop(ctx context.Context) {
	interval := time.Duration(a.cfg.Interpreter.RefreshIntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.interp.Refresh(ctx); err != nil {
				a.log.Warn("catalog refresh failed", "err", err)
			}
		}
	}
}

// statsLoop periodically logs the counters of every pipeline stage.
func (a *App) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			capStats := a.stage.Stats()
			gateStats := a.gate.Stats()
			recStats := a.recognizer.Stats()
			a.log.Debug("pipeline stats",
				"frames", capStats.FramesProcessed,
				"frames_dropped", capStats.FramesDropped,
				"avg_volume", capStats.AvgVolume,
				"noise_floor", capStats.NoiseFloor,
				"detections", gateStats.Detections,
				"recognitions", recStats.Recognitions,
				"fallbacks", recStats.Fallbacks,
				"sessions", a.machine.Stats().Sessions,
			)
		}
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-start order. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// Status returns the player's current playback status.
func (a *App) Status() player.Status {
	return a.controller.Status()
}
