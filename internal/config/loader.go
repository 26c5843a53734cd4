package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize == 0 {
		cfg.Audio.ChunkSize = 1024
	}
	if cfg.WakeWord.DefaultThreshold == 0 {
		cfg.WakeWord.DefaultThreshold = 0.5
	}
	if cfg.WakeWord.TimeoutSeconds == 0 {
		cfg.WakeWord.TimeoutSeconds = 10
	}
	if cfg.Recognition.SampleRate == 0 {
		cfg.Recognition.SampleRate = 16000
	}
	if cfg.Recognition.PrimaryEngine == "" {
		cfg.Recognition.PrimaryEngine = EngineVosk
	}
	if cfg.Recognition.FallbackEngine == "" {
		cfg.Recognition.FallbackEngine = EngineWhisper
	}
	if cfg.Interpreter.ConfidenceThreshold == 0 {
		cfg.Interpreter.ConfidenceThreshold = 0.7
	}
	if cfg.Interpreter.RefreshIntervalSeconds == 0 {
		cfg.Interpreter.RefreshIntervalSeconds = 300
	}
	if cfg.Catalog.TimeoutSeconds == 0 {
		cfg.Catalog.TimeoutSeconds = 30
	}
	if cfg.Catalog.RetryAttempts == 0 {
		cfg.Catalog.RetryAttempts = 3
	}
	if cfg.Catalog.CacheTTLSeconds == 0 {
		cfg.Catalog.CacheTTLSeconds = 300
	}
	if cfg.Playback.InitialVolume == 0 {
		cfg.Playback.InitialVolume = 50
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels < 1 {
		errs = append(errs, fmt.Errorf("audio.channels %d must be at least 1", cfg.Audio.Channels))
	}
	if cfg.Audio.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_size %d must be positive", cfg.Audio.ChunkSize))
	}
	if cfg.Audio.VADThreshold < 0 || cfg.Audio.VADThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.vad_threshold %.2f is out of range [0, 1]", cfg.Audio.VADThreshold))
	}

	if cfg.WakeWord.DefaultThreshold < 0 || cfg.WakeWord.DefaultThreshold > 1 {
		errs = append(errs, fmt.Errorf("wake_word.default_threshold %.2f is out of range [0, 1]", cfg.WakeWord.DefaultThreshold))
	}
	if cfg.WakeWord.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("wake_word.timeout_seconds %d must be positive", cfg.WakeWord.TimeoutSeconds))
	}
	wordsSeen := make(map[string]int, len(cfg.WakeWord.WakeWords))
	for i, w := range cfg.WakeWord.WakeWords {
		prefix := fmt.Sprintf("wake_word.wake_words[%d]", i)
		if w.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := wordsSeen[w.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of wake_words[%d]", prefix, w.Name, prev))
			}
			wordsSeen[w.Name] = i
		}
		if w.Threshold < 0 || w.Threshold > 1 {
			errs = append(errs, fmt.Errorf("%s.threshold %.2f is out of range [0, 1]", prefix, w.Threshold))
		}
	}

	if !cfg.Recognition.PrimaryEngine.IsValid() {
		errs = append(errs, fmt.Errorf("recognition.primary_engine %q is invalid; valid values: vosk, whisper, stub", cfg.Recognition.PrimaryEngine))
	}
	if !cfg.Recognition.FallbackEngine.IsValid() {
		errs = append(errs, fmt.Errorf("recognition.fallback_engine %q is invalid; valid values: vosk, whisper, stub", cfg.Recognition.FallbackEngine))
	}
	if cfg.Recognition.PrimaryEngine.IsValid() && cfg.Recognition.PrimaryEngine == cfg.Recognition.FallbackEngine {
		errs = append(errs, fmt.Errorf("recognition.fallback_engine %q must differ from the primary engine", cfg.Recognition.FallbackEngine))
	}
	if cfg.Recognition.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("recognition.sample_rate %d must be positive", cfg.Recognition.SampleRate))
	}

	if cfg.Interpreter.ConfidenceThreshold < 0 || cfg.Interpreter.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("interpreter.confidence_threshold %.2f is out of range [0, 1]", cfg.Interpreter.ConfidenceThreshold))
	}

	if cfg.Catalog.BaseURL == "" {
		errs = append(errs, errors.New("catalog.base_url is required"))
	}
	if cfg.Catalog.Username == "" {
		errs = append(errs, errors.New("catalog.username is required"))
	}

	if cfg.Playback.InitialVolume < 0 || cfg.Playback.InitialVolume > 100 {
		errs = append(errs, fmt.Errorf("playback.initial_volume %d is out of range [0, 100]", cfg.Playback.InitialVolume))
	}

	return errors.Join(errs...)
}
