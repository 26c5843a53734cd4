// Package mock provides an energy-heuristic wake-word classifier used when
// no trained model is available. It is deliberately crude: loud frames score
// high on a periodic schedule, everything else scores low.
package mock

import (
	"sync"

	"github.com/mveroni/cadenza/pkg/audio"
)

// Classifier scores every Nth sufficiently loud frame at 0.8 and everything
// else at 0.1.
type Classifier struct {
	// Word is the name the scores are reported under.
	Word string

	// Every selects the frame period. Defaults to 50.
	Every int

	// MinRMS is the loudness floor for a high score. Defaults to 0.1.
	MinRMS float64

	mu     sync.Mutex
	frames int
}

// Predict implements the gate's classifier contract.
func (c *Classifier) Predict(frame audio.Frame) (map[string]float64, error) {
	every := c.Every
	if every <= 0 {
		every = 50
	}
	minRMS := c.MinRMS
	if minRMS == 0 {
		minRMS = 0.1
	}

	c.mu.Lock()
	c.frames++
	n := c.frames
	c.mu.Unlock()

	score := 0.1
	if n%every == 0 && audio.RMS(frame.Samples) > minRMS {
		score = 0.8
	}
	return map[string]float64{c.Word: score}, nil
}
