// Package config provides the configuration schema, loader, and engine
// registry for the Cadenza voice controller.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// EngineName selects a recognition engine implementation.
type EngineName string

const (
	EngineVosk    EngineName = "vosk"
	EngineWhisper EngineName = "whisper"
	EngineStub    EngineName = "stub"
)

// IsValid reports whether e is a recognised engine name.
func (e EngineName) IsValid() bool {
	switch e {
	case EngineVosk, EngineWhisper, EngineStub:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	WakeWord    WakeWordConfig    `yaml:"wake_word"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Playback    PlaybackConfig    `yaml:"playback"`
}

// ServerConfig holds logging and observability settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address for the Prometheus /metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// AudioConfig configures the capture stage.
type AudioConfig struct {
	// SampleRate in Hz. The recognition engines expect 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the input channel count; the pipeline is mono.
	Channels int `yaml:"channels"`

	// ChunkSize is the number of samples per captured chunk.
	ChunkSize int `yaml:"chunk_size"`

	// DeviceIndex selects the input device; -1 uses the system default.
	DeviceIndex int `yaml:"device_index"`

	// NoiseReduction enables the high-pass filter.
	NoiseReduction bool `yaml:"noise_reduction"`

	// Normalization enables peak normalization.
	Normalization bool `yaml:"normalization"`

	// VADThreshold is the mean-squared-energy level above which a frame
	// counts as voiced.
	VADThreshold float64 `yaml:"vad_threshold"`
}

// WakeWordConfig configures the wake-word gate.
type WakeWordConfig struct {
	WakeWords []WakeWordEntry `yaml:"wake_words"`

	// DefaultThreshold applies to words without their own threshold.
	DefaultThreshold float64 `yaml:"default_threshold"`

	// TimeoutSeconds is the command window duration after a detection.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// WakeWordEntry describes one wake word.
type WakeWordEntry struct {
	Name      string  `yaml:"name"`
	ModelPath string  `yaml:"model_path"`
	Threshold float64 `yaml:"threshold"`
}

// RecognitionConfig configures the hybrid recognizer pair.
type RecognitionConfig struct {
	// PrimaryEngine handles mid-length segments.
	PrimaryEngine EngineName `yaml:"primary_engine"`

	// FallbackEngine fills the other slot of the pair.
	FallbackEngine EngineName `yaml:"fallback_engine"`

	// SampleRate the engines expect, in Hz.
	SampleRate int `yaml:"sample_rate"`

	Vosk    VoskConfig    `yaml:"vosk"`
	Whisper WhisperConfig `yaml:"whisper"`
}

// VoskConfig configures the streaming engine.
type VoskConfig struct {
	ModelPath       string `yaml:"model_path"`
	MaxAlternatives int    `yaml:"max_alternatives"`
}

// WhisperConfig configures the batch engine.
type WhisperConfig struct {
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

// InterpreterConfig configures command interpretation.
type InterpreterConfig struct {
	// ConfidenceThreshold below which commands count as failed matches.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// RefreshIntervalSeconds between entity cache reloads.
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`
}

// CatalogConfig configures the Subsonic client.
type CatalogConfig struct {
	BaseURL    string `yaml:"base_url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	ClientName string `yaml:"client_name"`

	TimeoutSeconds  int `yaml:"timeout_seconds"`
	RetryAttempts   int `yaml:"retry_attempts"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// PlaybackConfig configures the playback controller.
type PlaybackConfig struct {
	// InitialVolume in 0-100.
	InitialVolume int `yaml:"initial_volume"`
}
