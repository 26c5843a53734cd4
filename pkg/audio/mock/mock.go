// Package mock provides a scripted audio input device for tests and for
// running the pipeline without a microphone.
package mock

import (
	"sync"
	"time"
)

// Device replays a fixed sequence of chunks to its subscriber. When the
// script is exhausted it emits silence until stopped.
type Device struct {
	// Chunks is the scripted sequence delivered in order.
	Chunks [][]float32

	// ChunkSize is the size of the silence chunks emitted after the script
	// runs out. Defaults to 1024.
	ChunkSize int

	// Interval between chunk deliveries. Defaults to 10ms.
	Interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// Start begins replaying chunks on a new goroutine.
func (d *Device) Start(onChunk func(samples []float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	d.done = make(chan struct{})

	interval := d.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1024
	}

	go func(done chan struct{}) {
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if i < len(d.Chunks) {
					onChunk(d.Chunks[i])
					i++
				} else {
					onChunk(make([]float32, chunkSize))
				}
			}
		}
	}(d.done)
	return nil
}

// Stop halts replay. Safe to call repeatedly.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	close(d.done)
	return nil
}
