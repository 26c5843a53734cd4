// Package mock provides a deterministic recognition engine used in tests and
// as the fallback when a real model cannot be loaded.
package mock

import (
	"context"
	"sync"

	"github.com/mveroni/cadenza/pkg/recognizer"
)

var defaultPhrases = []string{
	"riproduci musica",
	"pausa",
	"volume alto",
	"prossimo brano",
	"stop",
}

// Engine cycles through a fixed list of phrases, one per Transcribe call.
type Engine struct {
	// EngineName is reported by Name. Defaults to "stub".
	EngineName string

	// Phrases overrides the default cycle when non-empty.
	Phrases []string

	mu    sync.Mutex
	calls int
}

var _ recognizer.Engine = (*Engine)(nil)

// Name implements recognizer.Engine.
func (e *Engine) Name() string {
	if e.EngineName == "" {
		return "stub"
	}
	return e.EngineName
}

// Transcribe returns the next phrase in the cycle with confidence 0.85.
func (e *Engine) Transcribe(_ context.Context, _ []float32, _ int) (recognizer.Transcription, error) {
	phrases := e.Phrases
	if len(phrases) == 0 {
		phrases = defaultPhrases
	}

	e.mu.Lock()
	text := phrases[e.calls%len(phrases)]
	e.calls++
	e.mu.Unlock()

	return recognizer.Transcription{Text: text, Confidence: 0.85}, nil
}

// Calls reports how many times Transcribe ran.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
