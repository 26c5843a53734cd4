package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mveroni/cadenza/internal/config"
	"github.com/mveroni/cadenza/pkg/recognizer"
	recmock "github.com/mveroni/cadenza/pkg/recognizer/mock"
)

const validYAML = `
server:
  log_level: debug
  metrics_addr: ":9090"
audio:
  sample_rate: 16000
  channels: 1
  chunk_size: 1024
  device_index: -1
  noise_reduction: true
  normalization: true
  vad_threshold: 0.3
wake_word:
  wake_words:
    - name: hey_cadenza
      model_path: models/hey_cadenza.onnx
      threshold: 0.5
  default_threshold: 0.5
  timeout_seconds: 10
recognition:
  primary_engine: vosk
  fallback_engine: whisper
  sample_rate: 16000
  vosk:
    model_path: models/vosk-model-small-it-0.22
    max_alternatives: 3
  whisper:
    model_path: models/ggml-base.bin
    language: it
interpreter:
  confidence_threshold: 0.7
  refresh_interval_seconds: 300
catalog:
  base_url: http://localhost:4533
  username: admin
  password: secret
  client_name: cadenza
playback:
  initial_volume: 50
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Recognition.PrimaryEngine != config.EngineVosk {
		t.Errorf("primary engine: got %q", cfg.Recognition.PrimaryEngine)
	}
	if len(cfg.WakeWord.WakeWords) != 1 || cfg.WakeWord.WakeWords[0].Name != "hey_cadenza" {
		t.Errorf("wake words: got %+v", cfg.WakeWord.WakeWords)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := strings.Replace(validYAML, "metrics_addr:", "metrics_address:", 1)
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	minimal := `
catalog:
  base_url: http://localhost:4533
  username: admin
  password: secret
`
	cfg, err := config.LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.ChunkSize != 1024 {
		t.Errorf("audio defaults: %+v", cfg.Audio)
	}
	if cfg.WakeWord.TimeoutSeconds != 10 {
		t.Errorf("timeout default: got %d", cfg.WakeWord.TimeoutSeconds)
	}
	if cfg.Interpreter.RefreshIntervalSeconds != 300 {
		t.Errorf("refresh default: got %d", cfg.Interpreter.RefreshIntervalSeconds)
	}
	if cfg.Playback.InitialVolume != 50 {
		t.Errorf("volume default: got %d", cfg.Playback.InitialVolume)
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	yaml := `
server:
  log_level: loud
audio:
  vad_threshold: 1.5
wake_word:
  wake_words:
    - name: hey
      threshold: 0.5
    - name: hey
      threshold: 0.5
recognition:
  primary_engine: vosk
  fallback_engine: vosk
catalog:
  base_url: http://localhost:4533
  username: admin
playback:
  initial_volume: 150
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{
		"server.log_level",
		"audio.vad_threshold",
		"is a duplicate",
		"fallback_engine",
		"playback.initial_volume",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestRegistry_CreateEngine(t *testing.T) {
	r := config.NewRegistry()
	r.RegisterEngine(config.EngineStub, func(config.RecognitionConfig) (recognizer.Engine, error) {
		return &recmock.Engine{}, nil
	})

	eng, err := r.CreateEngine(config.EngineStub, config.RecognitionConfig{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if eng.Name() != "stub" {
		t.Errorf("engine name: got %q", eng.Name())
	}

	_, err = r.CreateEngine(config.EngineVosk, config.RecognitionConfig{})
	if !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("unregistered engine error: got %v", err)
	}
}
