package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mveroni/cadenza/pkg/audio"
)

const (
	// segmentAudioLimit flushes the buffer once it holds this much audio.
	segmentAudioLimit = 3 * time.Second

	// segmentWallLimit flushes the buffer once it has been open this long,
	// regardless of how much audio arrived.
	segmentWallLimit = 5 * time.Second

	// shortSegment routes to the streaming engine, longSegment to batch.
	// Between the two the configured primary decides.
	shortSegment = 2 * time.Second
	longSegment  = 5 * time.Second

	// queueSize bounds the pending segment queue.
	queueSize = 10
)

// Result is a finished transcription delivered to result handlers.
type Result struct {
	Text         string
	Confidence   float64
	Engine       string
	Latency      time.Duration
	Timestamp    time.Time
	Alternatives []string
}

// Handler receives transcription results. Handlers run on the recognizer's
// worker goroutine and must not block.
type Handler func(Result)

// Stats is a snapshot of the recognizer's counters.
type Stats struct {
	Recognitions  uint64
	Failures      uint64
	Fallbacks     uint64
	DroppedFlush  uint64
	EngineUse     map[string]uint64
	AvgConfidence float64
	AvgLatency    time.Duration
}

type segment struct {
	samples    []float32
	sampleRate int
	duration   time.Duration
}

// Recognizer buffers session audio and dispatches flushed segments to the
// engine pair.
type Recognizer struct {
	streaming Engine
	batch     Engine
	primary   string
	log       *slog.Logger

	queue chan segment

	mu        sync.Mutex
	active    bool
	buf       []float32
	bufRate   int
	bufStart  time.Time
	handlers  map[int]Handler
	nextID    int
	running   bool
	stats     Stats
	engineUse map[string]uint64

	wg   sync.WaitGroup
	quit chan struct{}
}

// New creates a recognizer over a streaming and a batch engine. primary
// names the engine used for mid-length segments; it must match one of the
// two engine names, otherwise the streaming engine is primary.
func New(streaming, batch Engine, primary string, log *slog.Logger) *Recognizer {
	if log == nil {
		log = slog.Default()
	}
	return &Recognizer{
		streaming: streaming,
		batch:     batch,
		primary:   primary,
		log:       log,
		queue:     make(chan segment, queueSize),
		handlers:  make(map[int]Handler),
		engineUse: make(map[string]uint64),
	}
}

// OnResult registers a result handler and returns an id for RemoveHandler.
func (r *Recognizer) OnResult(fn Handler) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.handlers[id] = fn
	return id
}

// RemoveHandler deregisters the handler with the given id.
func (r *Recognizer) RemoveHandler(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, id)
}

// Start launches the transcription worker.
func (r *Recognizer) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.quit = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.worker()

	r.log.Info("recognizer started",
		"streaming", r.streaming.Name(),
		"batch", r.batch.Name(),
		"primary", r.primary)
	return nil
}

// Stop halts the worker. Pending queued segments are abandoned.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	quit := r.quit
	r.mu.Unlock()

	close(quit)
	r.wg.Wait()
	return nil
}

// StartSession opens an utterance capture window. Audio fed outside a
// session is discarded.
func (r *Recognizer) StartSession() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.buf = nil
	r.bufStart = time.Time{}
}

// StopSession closes the capture window, transcribing any partial buffer
// synchronously so the session machine sees its result before timing out.
func (r *Recognizer) StopSession() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	seg, ok := r.takeSegmentLocked()
	r.mu.Unlock()

	if ok {
		r.process(seg)
	}
}

// Feed appends a frame to the session buffer and flushes a segment when
// either limit is exceeded. Frames outside an active session are ignored.
func (r *Recognizer) Feed(frame audio.Frame) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	if len(r.buf) == 0 {
		r.bufStart = time.Now()
		r.bufRate = frame.SampleRate
	}
	r.buf = append(r.buf, frame.Samples...)

	audioDur := r.bufferedLocked()
	wall := time.Since(r.bufStart)
	var seg segment
	flush := false
	if audioDur >= segmentAudioLimit || wall >= segmentWallLimit {
		seg, flush = r.takeSegmentLocked()
	}
	r.mu.Unlock()

	if !flush {
		return
	}
	select {
	case r.queue <- seg:
	default:
		r.mu.Lock()
		r.stats.DroppedFlush++
		r.mu.Unlock()
		r.log.Warn("recognizer queue full, dropping segment",
			"duration", seg.duration)
	}
}

func (r *Recognizer) bufferedLocked() time.Duration {
	if r.bufRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(r.buf)) / float64(r.bufRate) * float64(time.Second))
}

func (r *Recognizer) takeSegmentLocked() (segment, bool) {
	if len(r.buf) == 0 {
		return segment{}, false
	}
	seg := segment{
		samples:    r.buf,
		sampleRate: r.bufRate,
		duration:   r.bufferedLocked(),
	}
	r.buf = nil
	r.bufStart = time.Time{}
	return seg, true
}

func (r *Recognizer) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		case seg := <-r.queue:
			r.process(seg)
		}
	}
}

// selectEngine routes by segment duration: short goes streaming, long goes
// batch, everything between goes to the configured primary.
func (r *Recognizer) selectEngine(d time.Duration) (Engine, Engine) {
	switch {
	case d < shortSegment:
		return r.streaming, r.batch
	case d > longSegment:
		return r.batch, r.streaming
	case r.primary == r.batch.Name():
		return r.batch, r.streaming
	default:
		return r.streaming, r.batch
	}
}

func (r *Recognizer) process(seg segment) {
	first, second := r.selectEngine(seg.duration)

	res, err := r.transcribe(first, seg)
	if err != nil {
		r.log.Warn("engine failed, falling back",
			"engine", first.Name(), "error", err)
		r.mu.Lock()
		r.stats.Fallbacks++
		r.mu.Unlock()

		res, err = r.transcribe(second, seg)
		if err != nil {
			r.log.Error("both engines failed",
				"first", first.Name(), "second", second.Name(), "error", err)
			r.mu.Lock()
			r.stats.Failures++
			r.mu.Unlock()
			return
		}
	}

	r.mu.Lock()
	r.stats.Recognitions++
	r.engineUse[res.Engine]++
	r.stats.AvgConfidence = r.stats.AvgConfidence*0.9 + res.Confidence*0.1
	r.stats.AvgLatency = time.Duration(float64(r.stats.AvgLatency)*0.9 + float64(res.Latency)*0.1)
	handlers := make([]Handler, 0, len(r.handlers))
	for _, fn := range r.handlers {
		handlers = append(handlers, fn)
	}
	r.mu.Unlock()

	for _, fn := range handlers {
		r.deliver(fn, res)
	}
}

func (r *Recognizer) transcribe(e Engine, seg segment) (Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	tr, err := e.Transcribe(ctx, seg.samples, seg.sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("recognizer: %s: %w", e.Name(), err)
	}
	// An empty transcript counts as a miss so the other engine gets a try.
	if strings.TrimSpace(tr.Text) == "" {
		return Result{}, fmt.Errorf("recognizer: %s: empty transcription", e.Name())
	}
	return Result{
		Text:         tr.Text,
		Confidence:   clamp01(tr.Confidence),
		Engine:       e.Name(),
		Latency:      time.Since(start),
		Timestamp:    time.Now(),
		Alternatives: tr.Alternatives,
	}, nil
}

// clamp01 bounds a confidence to [0, 1]. Some engines report raw acoustic
// scores well outside the unit range.
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (r *Recognizer) deliver(fn Handler, res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("result handler panicked", "panic", rec)
		}
	}()
	fn(res)
}

// Stats returns a snapshot of the recognizer counters.
func (r *Recognizer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats
	st.EngineUse = make(map[string]uint64, len(r.engineUse))
	for k, v := range r.engineUse {
		st.EngineUse[k] = v
	}
	return st
}
