// Package vosk wraps the Vosk streaming recognizer behind the Engine
// interface. The Vosk shared library (libvosk.so) must be available at link
// time.
package vosk

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	vosklib "github.com/alphacep/vosk-api/go"

	"github.com/mveroni/cadenza/pkg/recognizer"
)

// Engine is the low-latency streaming engine. A single Vosk recognizer is
// reused across calls and guarded by a mutex; Vosk handles are not
// thread-safe.
type Engine struct {
	mu    sync.Mutex
	model *vosklib.VoskModel
	rec   *vosklib.VoskRecognizer
}

var _ recognizer.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*options)

type options struct {
	sampleRate      float64
	maxAlternatives int
}

// WithSampleRate sets the recognizer sample rate. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(o *options) { o.sampleRate = float64(rate) }
}

// WithMaxAlternatives requests up to n alternative hypotheses per result.
func WithMaxAlternatives(n int) Option {
	return func(o *options) { o.maxAlternatives = n }
}

// New loads the Vosk model at modelPath and prepares a recognizer.
func New(modelPath string, opts ...Option) (*Engine, error) {
	o := options{sampleRate: 16000}
	for _, fn := range opts {
		fn(&o)
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("vosk: model path %q: %w", modelPath, err)
	}

	model, err := vosklib.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("vosk: load model %q: %w", modelPath, err)
	}

	rec, err := vosklib.NewRecognizer(model, o.sampleRate)
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("vosk: create recognizer: %w", err)
	}
	if o.maxAlternatives > 0 {
		rec.SetMaxAlternatives(o.maxAlternatives)
	}

	return &Engine{model: model, rec: rec}, nil
}

// Name implements recognizer.Engine.
func (e *Engine) Name() string { return "vosk" }

// voskResult covers both result shapes: plain {"text": ...} and, when
// alternatives are enabled, {"alternatives": [{"confidence", "text"}, ...]}.
type voskResult struct {
	Text         string `json:"text"`
	Alternatives []struct {
		Confidence float64 `json:"confidence"`
		Text       string  `json:"text"`
	} `json:"alternatives"`
}

// Transcribe runs the full segment through the recognizer and returns the
// final hypothesis. The recognizer is reset after every call.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, _ int) (recognizer.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Transcription{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec == nil {
		return recognizer.Transcription{}, errors.New("vosk: engine closed")
	}

	e.rec.AcceptWaveform(float32ToPCM16(samples))
	raw := e.rec.FinalResult()
	e.rec.Reset()

	var res voskResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return recognizer.Transcription{}, fmt.Errorf("vosk: parse result: %w", err)
	}

	if len(res.Alternatives) > 0 {
		best := res.Alternatives[0]
		alts := make([]string, 0, len(res.Alternatives)-1)
		for _, a := range res.Alternatives[1:] {
			if a.Text != "" {
				alts = append(alts, a.Text)
			}
		}
		return recognizer.Transcription{
			Text:         best.Text,
			Confidence:   best.Confidence,
			Alternatives: alts,
		}, nil
	}

	// Plain results carry no confidence field.
	return recognizer.Transcription{Text: res.Text}, nil
}

// Close frees the recognizer and model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Free()
		e.rec = nil
	}
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

// float32ToPCM16 converts [-1, 1] samples to 16-bit little-endian PCM.
func float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*math.MaxInt16)))
	}
	return out
}
