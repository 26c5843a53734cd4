// Package player executes interpreted commands against an in-process
// playback queue backed by the catalog. Queue and position bookkeeping live
// here; actual audio output is delegated to whatever consumes the status
// callbacks.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mveroni/cadenza/internal/interpret"
	"github.com/mveroni/cadenza/pkg/catalog"
)

// PlaybackState of the queue.
type PlaybackState string

const (
	Stopped PlaybackState = "stopped"
	Playing PlaybackState = "playing"
	Paused  PlaybackState = "paused"
)

// Status is the current playback snapshot.
type Status struct {
	State       PlaybackState
	CurrentSong *catalog.Song
	Position    int // seconds into the current song
	Volume      int // 0-100
	Shuffle     bool
	Repeat      bool
	Queue       []catalog.Song
	QueuePos    int
}

// Result of executing a command. Messages are user facing.
type Result struct {
	Success bool
	Message string
	Data    map[string]any
	Status  Status
}

// StatusFunc receives playback status changes.
type StatusFunc func(Status)

// Stats is a snapshot of the controller's counters.
type Stats struct {
	Executed    uint64
	QueuesBuilt uint64
	Errors      uint64
}

// Config for the controller.
type Config struct {
	// InitialVolume in 0-100. Defaults to 50.
	InitialVolume int
}

// Controller holds the playback queue and executes commands.
type Controller struct {
	client catalog.Client
	log    *slog.Logger

	mu        sync.Mutex
	status    Status
	callbacks map[int]StatusFunc
	nextCB    int
	stats     Stats
}

// New creates a stopped controller.
func New(client catalog.Client, cfg Config, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	vol := cfg.InitialVolume
	if vol <= 0 || vol > 100 {
		vol = 50
	}
	return &Controller{
		client:    client,
		log:       log,
		status:    Status{State: Stopped, Volume: vol},
		callbacks: make(map[int]StatusFunc),
	}
}

// OnStatusChange registers a callback and returns an id for RemoveCallback.
func (c *Controller) OnStatusChange(fn StatusFunc) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextCB
	c.nextCB++
	c.callbacks[id] = fn
	return id
}

// RemoveCallback deregisters the callback with the given id.
func (c *Controller) RemoveCallback(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.callbacks, id)
}

func (c *Controller) notifyLocked() {
	status := c.status
	cbs := make([]StatusFunc, 0, len(c.callbacks))
	for _, fn := range c.callbacks {
		cbs = append(cbs, fn)
	}
	go func() {
		for _, fn := range cbs {
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.log.Error("status callback panicked", "panic", r)
					}
				}()
				fn(status)
			}()
		}
	}()
}

// Execute runs a command and returns its user-facing result.
func (c *Controller) Execute(ctx context.Context, cmd interpret.Command) Result {
	c.mu.Lock()
	c.stats.Executed++
	c.mu.Unlock()

	switch cmd.Type {
	case interpret.Play:
		return c.play(ctx, cmd)
	case interpret.Pause:
		return c.pause()
	case interpret.Stop:
		return c.stop()
	case interpret.Next:
		return c.next()
	case interpret.Previous:
		return c.previous()
	case interpret.Volume:
		return c.setVolume(cmd)
	case interpret.Shuffle:
		return c.toggleShuffle()
	case interpret.Repeat:
		return c.toggleRepeat()
	case interpret.Info:
		return c.info()
	default:
		return Result{
			Success: false,
			Message: fmt.Sprintf("Comando non supportato: %s", cmd.Type),
		}
	}
}

func (c *Controller) fail(format string, args ...any) Result {
	c.mu.Lock()
	c.stats.Errors++
	st := c.status
	c.mu.Unlock()
	return Result{Success: false, Message: fmt.Sprintf(format, args...), Status: st}
}

// startPlayback replaces the queue and begins at its head.
func (c *Controller) startPlayback(songs []catalog.Song) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.Queue = songs
	c.status.QueuePos = 0
	c.status.CurrentSong = &songs[0]
	c.status.State = Playing
	c.status.Position = 0
	c.stats.QueuesBuilt++
	c.notifyLocked()

	c.log.Info("playback started",
		"song", songs[0].Title, "artist", songs[0].Artist, "queue", len(songs))
	return c.status
}

// Status returns the current playback snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Stats returns a snapshot of the controller counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
