// Package wakeword gates the pipeline behind an activation phrase. A
// classifier scores each frame per configured word; scores above the word's
// threshold fire a detection event, subject to a global debounce window.
package wakeword

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mveroni/cadenza/pkg/audio"
)

const (
	// queueSize bounds the frame queue ahead of classification.
	queueSize = 50

	// ringSeconds is how much trailing audio the gate retains for the
	// detection event context.
	ringSeconds = 2

	// debounce is the minimum spacing between detection events, across all
	// words.
	debounce = 2 * time.Second
)

// Classifier scores a frame against the configured wake words. The returned
// map is keyed by word name; scores are in [0, 1].
type Classifier interface {
	Predict(frame audio.Frame) (map[string]float64, error)
}

// WordConfig describes one wake word.
type WordConfig struct {
	Name      string
	ModelPath string
	// Threshold in (0, 1]. Zero means use the gate's default.
	Threshold float64
}

// Event describes a wake-word detection.
type Event struct {
	Word       string
	Confidence float64
	Timestamp  time.Time
	// Context is a copy of the trailing audio leading up to the detection.
	Context []float32
}

// Handler receives detection events. Handlers run on the gate's goroutine
// and must not block.
type Handler func(Event)

// Stats is a snapshot of the gate's counters.
type Stats struct {
	FramesProcessed uint64
	FramesDropped   uint64
	Detections      uint64
	AvgConfidence   float64
	LastDetection   time.Time
}

// Gate consumes frames, classifies them and fires detection callbacks.
type Gate struct {
	classifier       Classifier
	words            map[string]float64
	defaultThreshold float64
	log              *slog.Logger

	queue chan audio.Frame

	mu        sync.Mutex
	handlers  map[int]Handler
	nextID    int
	dropHook  func()
	ring      []float32
	ringCap   int
	lastFired time.Time
	running   bool
	stats     Stats

	wg   sync.WaitGroup
	quit chan struct{}
}

// Config for the gate.
type Config struct {
	Words            []WordConfig
	DefaultThreshold float64
	SampleRate       int
}

// NewGate creates a gate over classifier.
func NewGate(classifier Classifier, cfg Config, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	words := make(map[string]float64, len(cfg.Words))
	for _, w := range cfg.Words {
		words[w.Name] = w.Threshold
	}
	return &Gate{
		classifier:       classifier,
		words:            words,
		defaultThreshold: cfg.DefaultThreshold,
		log:              log,
		queue:            make(chan audio.Frame, queueSize),
		handlers:         make(map[int]Handler),
		ringCap:          cfg.SampleRate * ringSeconds,
	}
}

// OnDetection registers a handler and returns an id for RemoveHandler.
func (g *Gate) OnDetection(fn Handler) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.handlers[id] = fn
	return id
}

// RemoveHandler deregisters the handler with the given id.
func (g *Gate) RemoveHandler(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.handlers, id)
}

// OnDrop registers fn to run each time a frame is discarded by a full
// queue. Only one hook is kept; fn runs on the caller of Process and must
// not block.
func (g *Gate) OnDrop(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropHook = fn
}

// Start launches the classification goroutine.
func (g *Gate) Start() error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = true
	g.quit = make(chan struct{})
	g.mu.Unlock()

	g.wg.Add(1)
	go g.loop()

	g.log.Info("wake-word gate started", "words", len(g.words))
	return nil
}

// Process hands a frame to the gate. It never blocks; when the queue is full
// the frame is dropped and counted.
func (g *Gate) Process(frame audio.Frame) {
	select {
	case g.queue <- frame:
	default:
		g.mu.Lock()
		g.stats.FramesDropped++
		hook := g.dropHook
		g.mu.Unlock()
		if hook != nil {
			hook()
		}
	}
}

func (g *Gate) loop() {
	defer g.wg.Done()
	for {
		select {
		case <-g.quit:
			return
		case frame := <-g.queue:
			g.classify(frame)
		}
	}
}

func (g *Gate) classify(frame audio.Frame) {
	g.appendRing(frame.Samples)

	scores, err := g.classifier.Predict(frame)
	if err != nil {
		g.log.Error("wake-word prediction failed", "error", err)
		return
	}

	g.mu.Lock()
	g.stats.FramesProcessed++
	g.mu.Unlock()

	now := frame.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	for word, score := range scores {
		threshold, ok := g.words[word]
		if !ok {
			continue
		}
		if threshold == 0 {
			threshold = g.defaultThreshold
		}
		if score < threshold {
			continue
		}

		g.mu.Lock()
		if !g.lastFired.IsZero() && now.Sub(g.lastFired) < debounce {
			g.mu.Unlock()
			return
		}
		g.lastFired = now
		g.stats.Detections++
		g.stats.AvgConfidence = g.stats.AvgConfidence*0.9 + score*0.1
		g.stats.LastDetection = now
		ctx := make([]float32, len(g.ring))
		copy(ctx, g.ring)
		handlers := make([]Handler, 0, len(g.handlers))
		for _, fn := range g.handlers {
			handlers = append(handlers, fn)
		}
		g.mu.Unlock()

		ev := Event{Word: word, Confidence: score, Timestamp: now, Context: ctx}
		g.log.Info("wake word detected", "word", word, "confidence", score)
		for _, fn := range handlers {
			g.fire(fn, ev)
		}
		return
	}
}

func (g *Gate) fire(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("wake-word handler panicked", "panic", r)
		}
	}()
	fn(ev)
}

func (g *Gate) appendRing(samples []float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ring = append(g.ring, samples...)
	if g.ringCap > 0 && len(g.ring) > g.ringCap {
		g.ring = g.ring[len(g.ring)-g.ringCap:]
	}
}

// Stop halts classification. Safe to call more than once.
func (g *Gate) Stop() error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	quit := g.quit
	g.mu.Unlock()

	close(quit)
	g.wg.Wait()
	g.log.Info("wake-word gate stopped")
	return nil
}

// Stats returns a snapshot of the gate counters.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
