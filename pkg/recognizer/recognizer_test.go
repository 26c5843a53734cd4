package recognizer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mveroni/cadenza/pkg/audio"
	"github.com/mveroni/cadenza/pkg/recognizer"
)

// fakeEngine records the segments it receives and returns a fixed text.
type fakeEngine struct {
	name       string
	err        error
	silent     bool
	confidence float64

	mu    sync.Mutex
	calls int
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Transcribe(_ context.Context, samples []float32, _ int) (recognizer.Transcription, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return recognizer.Transcription{}, e.err
	}
	if e.silent {
		return recognizer.Transcription{}, nil
	}
	conf := e.confidence
	if conf == 0 {
		conf = 0.9
	}
	return recognizer.Transcription{Text: e.name + " text", Confidence: conf}, nil
}

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func frameOf(seconds float64, rate int) audio.Frame {
	return audio.Frame{
		Samples:    make([]float32, int(seconds*float64(rate))),
		SampleRate: rate,
	}
}

func resultChan(r *recognizer.Recognizer) chan recognizer.Result {
	ch := make(chan recognizer.Result, 10)
	r.OnResult(func(res recognizer.Result) { ch <- res })
	return ch
}

func mustResult(t *testing.T, ch chan recognizer.Result) recognizer.Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return recognizer.Result{}
	}
}

func TestRecognizer_ShortSegmentUsesStreaming(t *testing.T) {
	streaming := &fakeEngine{name: "vosk"}
	batch := &fakeEngine{name: "whisper"}
	r := recognizer.New(streaming, batch, "whisper", nil)
	ch := resultChan(r)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	r.StartSession()
	r.Feed(frameOf(1.5, 16000))
	r.StopSession()

	res := mustResult(t, ch)
	if res.Engine != "vosk" {
		t.Errorf("engine for 1.5s segment: got %s, want vosk", res.Engine)
	}
	if batch.callCount() != 0 {
		t.Error("batch engine called for a short segment")
	}
}

func TestRecognizer_LongSegmentUsesBatchRegardlessOfPrimary(t *testing.T) {
	streaming := &fakeEngine{name: "vosk"}
	batch := &fakeEngine{name: "whisper"}
	r := recognizer.New(streaming, batch, "vosk", nil)
	ch := resultChan(r)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	// Segments flush at the 3s audio mark, so a long utterance arrives as
	// several flushed segments plus a remainder. Use StopSession with a
	// buffer fed as a single oversized frame to exercise the long path.
	r.StartSession()
	r.Feed(frameOf(6, 16000))

	res := mustResult(t, ch)
	if res.Engine != "whisper" {
		t.Errorf("engine for 6s segment: got %s, want whisper", res.Engine)
	}
	r.StopSession()
}

func TestRecognizer_MidSegmentUsesPrimary(t *testing.T) {
	for _, primary := range []string{"vosk", "whisper"} {
		streaming := &fakeEngine{name: "vosk"}
		batch := &fakeEngine{name: "whisper"}
		r := recognizer.New(streaming, batch, primary, nil)
		ch := resultChan(r)

		if err := r.Start(); err != nil {
			t.Fatalf("start: %v", err)
		}

		r.StartSession()
		r.Feed(frameOf(2.5, 16000))
		r.StopSession()

		res := mustResult(t, ch)
		if res.Engine != primary {
			t.Errorf("primary %s: engine got %s", primary, res.Engine)
		}
		r.Stop()
	}
}

func TestRecognizer_FallsBackOnEngineFailure(t *testing.T) {
	streaming := &fakeEngine{name: "vosk", err: errors.New("model crashed")}
	batch := &fakeEngine{name: "whisper"}
	r := recognizer.New(streaming, batch, "vosk", nil)
	ch := resultChan(r)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	r.StartSession()
	r.Feed(frameOf(1, 16000))
	r.StopSession()

	res := mustResult(t, ch)
	if res.Engine != "whisper" {
		t.Errorf("fallback engine: got %s, want whisper", res.Engine)
	}
	if got := r.Stats().Fallbacks; got != 1 {
		t.Errorf("fallbacks: got %d, want 1", got)
	}
}

func TestRecognizer_EmptyTranscriptTriggersFallback(t *testing.T) {
	streaming := &fakeEngine{name: "vosk", silent: true}
	batch := &fakeEngine{name: "whisper"}
	r := recognizer.New(streaming, batch, "vosk", nil)
	ch := resultChan(r)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	r.StartSession()
	r.Feed(frameOf(1, 16000))
	r.StopSession()

	res := mustResult(t, ch)
	if res.Engine != "whisper" {
		t.Errorf("fallback engine: got %s, want whisper", res.Engine)
	}
}

func TestRecognizer_ConfidenceClampedToUnitRange(t *testing.T) {
	// Vosk alternative confidences are acoustic scores that can run in the
	// hundreds; delivered results must stay in [0, 1].
	for _, tc := range []struct {
		raw  float64
		want float64
	}{
		{raw: 247.5, want: 1},
		{raw: -3, want: 0},
	} {
		streaming := &fakeEngine{name: "vosk", confidence: tc.raw}
		batch := &fakeEngine{name: "whisper"}
		r := recognizer.New(streaming, batch, "vosk", nil)
		ch := resultChan(r)

		if err := r.Start(); err != nil {
			t.Fatalf("start: %v", err)
		}

		r.StartSession()
		r.Feed(frameOf(1, 16000))
		r.StopSession()

		res := mustResult(t, ch)
		if res.Confidence != tc.want {
			t.Errorf("raw %f: confidence got %f, want %f", tc.raw, res.Confidence, tc.want)
		}
		if avg := r.Stats().AvgConfidence; avg < 0 || avg > 1 {
			t.Errorf("raw %f: average confidence %f outside [0, 1]", tc.raw, avg)
		}
		r.Stop()
	}
}

func TestRecognizer_BothEnginesFailingCountsFailure(t *testing.T) {
	streaming := &fakeEngine{name: "vosk", err: errors.New("down")}
	batch := &fakeEngine{name: "whisper", err: errors.New("down too")}
	r := recognizer.New(streaming, batch, "vosk", nil)
	ch := resultChan(r)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	r.StartSession()
	r.Feed(frameOf(1, 16000))
	r.StopSession()

	select {
	case res := <-ch:
		t.Fatalf("unexpected result: %+v", res)
	case <-time.After(200 * time.Millisecond):
	}
	if got := r.Stats().Failures; got != 1 {
		t.Errorf("failures: got %d, want 1", got)
	}
}

func TestRecognizer_AudioLimitFlushesMidSession(t *testing.T) {
	streaming := &fakeEngine{name: "vosk"}
	batch := &fakeEngine{name: "whisper"}
	r := recognizer.New(streaming, batch, "vosk", nil)
	ch := resultChan(r)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	r.StartSession()
	// Three 1s frames hit the 3s audio limit and flush without StopSession.
	for i := 0; i < 3; i++ {
		r.Feed(frameOf(1, 16000))
	}

	res := mustResult(t, ch)
	if res.Engine != "vosk" {
		t.Errorf("engine for 3s mid-range segment with primary vosk: got %s", res.Engine)
	}
	if got := r.Stats().Recognitions; got != 1 {
		t.Errorf("recognitions after flush: got %d, want 1", got)
	}
	r.StopSession()
}

func TestRecognizer_FeedOutsideSessionIsIgnored(t *testing.T) {
	streaming := &fakeEngine{name: "vosk"}
	batch := &fakeEngine{name: "whisper"}
	r := recognizer.New(streaming, batch, "vosk", nil)
	ch := resultChan(r)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	r.Feed(frameOf(1, 16000))
	r.StartSession()
	r.StopSession()

	select {
	case res := <-ch:
		t.Fatalf("unexpected result: %+v", res)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRecognizer_StatsTrackEngineUse(t *testing.T) {
	streaming := &fakeEngine{name: "vosk"}
	batch := &fakeEngine{name: "whisper"}
	r := recognizer.New(streaming, batch, "vosk", nil)
	ch := resultChan(r)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	r.StartSession()
	r.Feed(frameOf(1, 16000))
	r.StopSession()
	mustResult(t, ch)

	st := r.Stats()
	if st.EngineUse["vosk"] != 1 {
		t.Errorf("vosk use: got %d, want 1", st.EngineUse["vosk"])
	}
	if st.AvgConfidence <= 0 {
		t.Error("confidence EMA not updated")
	}
}
