package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mveroni/cadenza/pkg/audio"
)

// queueSize bounds the raw chunk queue between the device callback and the
// processing goroutine. When full, the incoming chunk is dropped.
const queueSize = 100

// highPassCutoff is the cutoff frequency for the noise reduction filter.
const highPassCutoff = 80.0

// Config controls the processing applied to captured chunks.
type Config struct {
	SampleRate     int
	NoiseReduction bool
	Normalization  bool
	VADThreshold   float64
}

// Subscriber receives processed frames together with the VAD decision.
// Subscribers run on the stage's processing goroutine and must not block.
type Subscriber func(frame audio.Frame, voice bool)

// Stats is a snapshot of the stage's counters and running estimates.
type Stats struct {
	FramesProcessed   uint64
	FramesDropped     uint64
	AvgVolume         float64
	NoiseFloor        float64
	LastVoiceActivity time.Time
}

// Stage pulls chunks from a Device, preprocesses them and fans frames out to
// subscribers. Frames that arrive while the queue is full are dropped rather
// than delaying the device callback.
type Stage struct {
	cfg    Config
	device Device
	log    *slog.Logger

	queue chan []float32

	mu       sync.Mutex
	subs     map[int]Subscriber
	nextSub  int
	dropHook func()
	running  bool
	stats    Stats

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewStage creates a capture stage reading from device.
func NewStage(device Device, cfg Config, log *slog.Logger) *Stage {
	if log == nil {
		log = slog.Default()
	}
	return &Stage{
		cfg:    cfg,
		device: device,
		log:    log,
		queue:  make(chan []float32, queueSize),
		subs:   make(map[int]Subscriber),
	}
}

// Subscribe registers fn and returns an id for Unsubscribe.
func (s *Stage) Subscribe(fn Subscriber) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return id
}

// Unsubscribe removes the subscriber with the given id.
func (s *Stage) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// OnDrop registers fn to run each time a chunk is discarded by a full
// queue. Only one hook is kept; fn runs on the device goroutine and must
// not block.
func (s *Stage) OnDrop(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropHook = fn
}

// Start opens the device and launches the processing goroutine. A device
// that cannot start is a fatal condition; no silent fallback happens here.
func (s *Stage) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.quit = make(chan struct{})
	s.mu.Unlock()

	if err := s.device.Start(s.enqueue); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("capture: start device: %w", err)
	}

	s.wg.Add(1)
	go s.processLoop()

	s.log.Info("capture stage started",
		"sample_rate", s.cfg.SampleRate,
		"noise_reduction", s.cfg.NoiseReduction,
		"normalization", s.cfg.Normalization)
	return nil
}

// enqueue runs on the device goroutine. It never blocks; a full queue means
// the chunk is counted as dropped and discarded.
func (s *Stage) enqueue(samples []float32) {
	select {
	case s.queue <- samples:
	default:
		s.mu.Lock()
		s.stats.FramesDropped++
		dropped := s.stats.FramesDropped
		hook := s.dropHook
		s.mu.Unlock()
		if hook != nil {
			hook()
		}
		if dropped%100 == 1 {
			s.log.Warn("capture queue full, dropping audio", "dropped_total", dropped)
		}
	}
}

func (s *Stage) processLoop() {
	defer s.wg.Done()

	var filter *audio.HighPass
	if s.cfg.NoiseReduction {
		filter = audio.NewHighPass(highPassCutoff, s.cfg.SampleRate)
	}

	for {
		select {
		case <-s.quit:
			return
		case samples := <-s.queue:
			s.process(samples, filter)
		case <-time.After(time.Second):
			// Periodic wakeup so a silent device cannot wedge shutdown.
		}
	}
}

func (s *Stage) process(samples []float32, filter *audio.HighPass) {
	if s.cfg.Normalization {
		samples = audio.Normalize(samples)
	}
	if filter != nil {
		samples = filter.Process(samples)
	}

	frame := audio.Frame{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Timestamp:  time.Now(),
	}
	voice := audio.HasVoice(samples, s.cfg.VADThreshold)
	rms := audio.RMS(samples)

	s.mu.Lock()
	s.stats.FramesProcessed++
	s.stats.AvgVolume = s.stats.AvgVolume*0.9 + rms*0.1
	if voice {
		s.stats.LastVoiceActivity = frame.Timestamp
	} else {
		s.stats.NoiseFloor = s.stats.NoiseFloor*0.95 + rms*0.05
	}
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		s.dispatch(fn, frame, voice)
	}
}

// dispatch isolates subscriber panics so one bad consumer cannot take the
// pipeline down.
func (s *Stage) dispatch(fn Subscriber, frame audio.Frame, voice bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("capture subscriber panicked", "panic", r)
		}
	}()
	fn(frame, voice)
}

// Stop halts the device and the processing goroutine. Safe to call more
// than once.
func (s *Stage) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	quit := s.quit
	s.mu.Unlock()

	err := s.device.Stop()
	close(quit)
	s.wg.Wait()

	if err != nil {
		return fmt.Errorf("capture: stop device: %w", err)
	}
	s.log.Info("capture stage stopped")
	return nil
}

// Stats returns a snapshot of the stage counters.
func (s *Stage) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
