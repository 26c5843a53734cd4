// Package whisper wraps the whisper.cpp CGO bindings behind the Engine
// interface. The whisper.cpp static library (libwhisper.a) and headers must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/mveroni/cadenza/pkg/recognizer"
)

// Engine is the high-accuracy batch engine. The model is loaded once and
// shared; each Transcribe call creates a fresh whisper context because
// contexts are not thread-safe.
type Engine struct {
	model    whisperlib.Model
	language string
}

var _ recognizer.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLanguage sets the transcription language code (e.g. "it", "en").
// Defaults to "it".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// New loads the whisper model from modelPath. Call Close when done.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{model: model, language: "it"}
	for _, fn := range opts {
		fn(e)
	}
	return e, nil
}

// Name implements recognizer.Engine.
func (e *Engine) Name() string { return "whisper" }

// Transcribe runs the segment through a fresh whisper context and joins the
// produced segments. Whisper does not report per-utterance confidence, so
// the result carries 1.0.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, _ int) (recognizer.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Transcription{}, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return recognizer.Transcription{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		return recognizer.Transcription{}, fmt.Errorf("whisper: set language %q: %w", e.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return recognizer.Transcription{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return recognizer.Transcription{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return recognizer.Transcription{
		Text:       strings.Join(parts, " "),
		Confidence: 1.0,
	}, nil
}

// Close releases the model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}
