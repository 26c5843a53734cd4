// Package session implements the command window state machine. A wake event
// opens a listening window; either a recognition result closes it or the
// timeout expires. A single session instance exists at a time, serialized by
// one mutex.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mveroni/cadenza/pkg/recognizer"
)

// State of the command window.
type State string

const (
	Idle       State = "idle"
	Listening  State = "listening"
	Recognized State = "recognized"
	TimedOut   State = "timed_out"
)

// DefaultTimeout closes a listening window that produced no result.
const DefaultTimeout = 10 * time.Second

// Recognition is the subset of the recognizer the machine drives.
type Recognition interface {
	StartSession()
	StopSession()
}

// ResultFunc receives the recognition result that closed a window.
type ResultFunc func(recognizer.Result)

// TimeoutFunc is invoked when a window expires without a result.
type TimeoutFunc func()

// Stats is a snapshot of the machine's counters.
type Stats struct {
	Sessions  uint64
	Completed uint64
	TimedOut  uint64
	Ignored   uint64
	State     State
}

// Machine is the single mutex-guarded session instance.
type Machine struct {
	rec       Recognition
	onResult  ResultFunc
	onTimeout TimeoutFunc
	timeout   time.Duration
	log       *slog.Logger

	mu    sync.Mutex
	state State
	id    string
	timer *time.Timer
	stats Stats
}

// Option configures a Machine.
type Option func(*Machine)

// WithTimeout overrides the listening window duration.
func WithTimeout(d time.Duration) Option {
	return func(m *Machine) { m.timeout = d }
}

// WithLogger sets the machine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// New creates an idle machine. onResult fires for each result that closes a
// window; onTimeout fires when a window expires.
func New(rec Recognition, onResult ResultFunc, onTimeout TimeoutFunc, opts ...Option) *Machine {
	m := &Machine{
		rec:       rec,
		onResult:  onResult,
		onTimeout: onTimeout,
		timeout:   DefaultTimeout,
		log:       slog.Default(),
		state:     Idle,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// HandleWake opens a listening window. Wake events arriving while a window
// is already open are ignored and do not reset the timer.
func (m *Machine) HandleWake(word string) {
	m.mu.Lock()
	if m.state != Idle {
		m.stats.Ignored++
		m.mu.Unlock()
		m.log.Debug("wake ignored, session active", "word", word)
		return
	}

	id := uuid.NewString()
	m.state = Listening
	m.id = id
	m.stats.Sessions++
	m.timer = time.AfterFunc(m.timeout, func() { m.expire(id) })
	m.mu.Unlock()

	m.log.Info("command session opened", "word", word, "session", id, "timeout", m.timeout)
	m.rec.StartSession()
}

// HandleResult closes the window with a recognition result. Results arriving
// outside a listening window are dropped.
func (m *Machine) HandleResult(res recognizer.Result) {
	m.mu.Lock()
	if m.state != Listening {
		m.mu.Unlock()
		return
	}
	m.state = Recognized
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	id := m.id
	m.stats.Completed++
	m.mu.Unlock()

	m.log.Info("command session recognized",
		"session", id, "text", res.Text, "engine", res.Engine)
	m.rec.StopSession()

	if m.onResult != nil {
		m.onResult(res)
	}

	m.mu.Lock()
	m.state = Idle
	m.id = ""
	m.mu.Unlock()
}

// expire fires at most once per session; the id check discards timers that
// lost the race against a result.
func (m *Machine) expire(id string) {
	m.mu.Lock()
	if m.state != Listening || m.id != id {
		m.mu.Unlock()
		return
	}
	m.state = TimedOut
	m.timer = nil
	m.stats.TimedOut++
	m.mu.Unlock()

	m.log.Info("command session timed out", "session", id)
	m.rec.StopSession()

	if m.onTimeout != nil {
		m.onTimeout()
	}

	m.mu.Lock()
	m.state = Idle
	m.id = ""
	m.mu.Unlock()
}

// Close cancels any open window.
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	open := m.state == Listening
	m.state = Idle
	m.id = ""
	m.mu.Unlock()

	if open {
		m.rec.StopSession()
	}
	return nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of the machine counters.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats
	st.State = m.state
	return st
}
