package main

import (
	"testing"

	"github.com/mveroni/cadenza/internal/config"
	"github.com/mveroni/cadenza/pkg/recognizer"
	recmock "github.com/mveroni/cadenza/pkg/recognizer/mock"
)

// fakeRegistry registers constructible doubles for every builtin engine so
// assignment can be exercised without model files on disk.
func fakeRegistry() *config.Registry {
	reg := config.NewRegistry()
	for _, name := range []config.EngineName{config.EngineVosk, config.EngineWhisper, config.EngineStub} {
		n := string(name)
		reg.RegisterEngine(name, func(config.RecognitionConfig) (recognizer.Engine, error) {
			return &recmock.Engine{EngineName: n}, nil
		})
	}
	return reg
}

func TestAssignEngines_HonorsConfiguredPair(t *testing.T) {
	cases := []struct {
		primary, fallback config.EngineName
		streaming, batch  string
	}{
		{config.EngineVosk, config.EngineWhisper, "vosk", "whisper"},
		{config.EngineWhisper, config.EngineVosk, "vosk", "whisper"},
		{config.EngineWhisper, config.EngineStub, "stub", "whisper"},
		{config.EngineVosk, config.EngineStub, "vosk", "stub"},
		{config.EngineStub, config.EngineVosk, "stub", "vosk"},
		{config.EngineStub, config.EngineWhisper, "stub", "whisper"},
	}
	for _, tc := range cases {
		s, b := assignEngines(fakeRegistry(), config.RecognitionConfig{
			PrimaryEngine:  tc.primary,
			FallbackEngine: tc.fallback,
		})
		if s.Name() != tc.streaming || b.Name() != tc.batch {
			t.Errorf("%s/%s: got %s/%s, want %s/%s",
				tc.primary, tc.fallback, s.Name(), b.Name(), tc.streaming, tc.batch)
		}
	}
}
