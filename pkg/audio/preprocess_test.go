package audio_test

import (
	"math"
	"testing"

	"github.com/mveroni/cadenza/pkg/audio"
)

func TestNormalize_PeakIs08(t *testing.T) {
	in := []float32{0.1, -0.5, 0.25, 0.05}
	out := audio.Normalize(in)

	if len(out) != len(in) {
		t.Fatalf("length changed: got %d, want %d", len(out), len(in))
	}

	var peak float64
	for _, s := range out {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if math.Abs(peak-0.8) > 1e-6 {
		t.Errorf("peak after normalization: got %f, want 0.8", peak)
	}
}

func TestNormalize_ZeroInputUnchanged(t *testing.T) {
	in := make([]float32, 16)
	out := audio.Normalize(in)
	if len(out) != len(in) {
		t.Fatalf("length changed: got %d, want %d", len(out), len(in))
	}
	for i, s := range out {
		if s != 0 {
			t.Fatalf("sample %d: got %f, want 0", i, s)
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []float32{0.1, 0.2}
	_ = audio.Normalize(in)
	if in[0] != 0.1 || in[1] != 0.2 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestHighPass_PreservesLength(t *testing.T) {
	hp := audio.NewHighPass(80, 16000)
	for _, n := range []int{1, 7, 1024} {
		in := make([]float32, n)
		out := hp.Process(in)
		if len(out) != n {
			t.Errorf("length for n=%d: got %d, want %d", n, len(out), n)
		}
	}
}

func TestHighPass_AttenuatesDC(t *testing.T) {
	hp := audio.NewHighPass(80, 16000)

	// A constant (0 Hz) signal should decay towards zero.
	in := make([]float32, 16000)
	for i := range in {
		in[i] = 0.5
	}
	out := hp.Process(in)

	tail := out[len(out)-1000:]
	if rms := audio.RMS(tail); rms > 0.01 {
		t.Errorf("DC tail RMS: got %f, want < 0.01", rms)
	}
}

func TestHighPass_PassesSpeechBand(t *testing.T) {
	hp := audio.NewHighPass(80, 16000)

	// 1 kHz tone, well above the cutoff, should pass nearly unattenuated.
	in := make([]float32, 16000)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*1000*float64(i)/16000))
	}
	out := hp.Process(in)

	inRMS := audio.RMS(in[8000:])
	outRMS := audio.RMS(out[8000:])
	if outRMS < inRMS*0.9 {
		t.Errorf("1 kHz tone attenuated: in RMS %f, out RMS %f", inRMS, outRMS)
	}
}

func TestHasVoice_MonotonicInEnergy(t *testing.T) {
	const threshold = 0.01

	// Increasing amplitude must never flip a positive decision back to
	// negative.
	prev := false
	for _, amp := range []float32{0.001, 0.01, 0.05, 0.1, 0.5, 0.9} {
		frame := make([]float32, 512)
		for i := range frame {
			frame[i] = amp
		}
		got := audio.HasVoice(frame, threshold)
		if prev && !got {
			t.Fatalf("decision flipped negative at amplitude %f", amp)
		}
		prev = got
	}
	if !prev {
		t.Error("expected voice at amplitude 0.9")
	}
}

func TestFrameDuration(t *testing.T) {
	f := audio.Frame{Samples: make([]float32, 16000), SampleRate: 16000}
	if d := f.Duration().Seconds(); math.Abs(d-1.0) > 1e-9 {
		t.Errorf("duration: got %fs, want 1s", d)
	}
}
