// Package recognizer turns gated utterance audio into text through a pair of
// engines: a low-latency streaming engine and a high-accuracy batch engine.
// Audio is buffered per session and flushed in segments; each segment is
// routed to an engine based on its duration, with synchronous cross-engine
// fallback on failure.
package recognizer

import "context"

// Transcription is the raw output of a single engine call.
type Transcription struct {
	Text         string
	Confidence   float64
	Alternatives []string
}

// Engine converts an audio segment into text. Implementations serialize
// internally; callers may invoke Transcribe from the recognizer goroutine
// only.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (Transcription, error)
}
