// Package audio defines the frame type flowing through the Cadenza pipeline
// and the DSP helpers applied to it before fan-out: peak normalization, a
// second-order high-pass filter for low-frequency noise, and energy-based
// voice activity detection.
package audio

import (
	"math"
	"time"
)

// Frame is a single chunk of mono audio flowing through the pipeline.
// Samples are floating-point in [-1, 1]. A Frame is immutable once emitted
// by the capture stage; consumers must not modify Samples.
type Frame struct {
	// Samples holds chunk_size mono samples in [-1, 1].
	Samples []float32

	// SampleRate in Hz (16000 for the recognition engines).
	SampleRate int

	// Timestamp marks when this frame was captured.
	Timestamp time.Time
}

// Duration returns the wall-clock length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

// RMS returns the root-mean-square amplitude of the samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Energy returns the mean squared energy of the samples. This is the
// quantity compared against the VAD threshold.
func Energy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(samples))
}

// HasVoice reports whether the frame's energy exceeds threshold. The decision
// is a plain comparison with no hysteresis.
func HasVoice(samples []float32, threshold float64) bool {
	return Energy(samples) > threshold
}
