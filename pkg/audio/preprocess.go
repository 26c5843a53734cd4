package audio

import "math"

// normTargetPeak is the peak amplitude frames are scaled to when
// normalization is enabled.
const normTargetPeak = 0.8

// Normalize returns a copy of samples scaled so that the peak absolute
// amplitude equals 0.8. All-zero input is returned as an unscaled copy.
// The output length always equals the input length.
func Normalize(samples []float32) []float32 {
	out := make([]float32, len(samples))
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		copy(out, samples)
		return out
	}
	scale := float32(normTargetPeak) / peak
	for i, s := range samples {
		out[i] = s * scale
	}
	return out
}

// HighPass is a second-order Butterworth high-pass biquad used to attenuate
// low-frequency noise (mains hum, handling rumble) before VAD and
// recognition. The filter is stateful across frames; it must only be driven
// by the single goroutine that owns the capture processing loop.
type HighPass struct {
	b0, b1, b2 float64
	a1, a2     float64

	// delay line (direct form II transposed)
	z1, z2 float64
}

// NewHighPass creates a high-pass filter with the given cutoff frequency in
// Hz for audio at sampleRate. The conventional default cutoff is 80 Hz.
func NewHighPass(cutoff float64, sampleRate int) *HighPass {
	// RBJ audio EQ cookbook biquad, Q = 1/sqrt(2) for Butterworth response.
	w0 := 2 * math.Pi * cutoff / float64(sampleRate)
	cosw0 := math.Cos(w0)
	alpha := math.Sin(w0) / math.Sqrt2

	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return &HighPass{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// Process filters samples and returns a new slice of the same length.
func (h *HighPass) Process(samples []float32) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		x := float64(s)
		y := h.b0*x + h.z1
		h.z1 = h.b1*x - h.a1*y + h.z2
		h.z2 = h.b2*x - h.a2*y
		out[i] = float32(y)
	}
	return out
}

// Reset clears the filter's delay line. Use when the input stream restarts
// so stale state does not bleed into the new segment.
func (h *HighPass) Reset() {
	h.z1, h.z2 = 0, 0
}
