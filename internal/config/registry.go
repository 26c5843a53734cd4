package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mveroni/cadenza/pkg/recognizer"
	"github.com/mveroni/cadenza/pkg/wakeword"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: factory not registered")

// Registry maps engine and classifier names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	engines     map[EngineName]func(RecognitionConfig) (recognizer.Engine, error)
	classifiers map[string]func(WakeWordConfig) (wakeword.Classifier, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		engines:     make(map[EngineName]func(RecognitionConfig) (recognizer.Engine, error)),
		classifiers: make(map[string]func(WakeWordConfig) (wakeword.Classifier, error)),
	}
}

// RegisterEngine registers a recognition engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterEngine(name EngineName, factory func(RecognitionConfig) (recognizer.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = factory
}

// RegisterClassifier registers a wake-word classifier factory under name.
func (r *Registry) RegisterClassifier(name string, factory func(WakeWordConfig) (wakeword.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifiers[name] = factory
}

// CreateEngine instantiates the engine registered under name.
// Returns [ErrNotRegistered] if no factory has been registered for it.
func (r *Registry) CreateEngine(name EngineName, cfg RecognitionConfig) (recognizer.Engine, error) {
	r.mu.RLock()
	factory, ok := r.engines[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: engine/%q", ErrNotRegistered, name)
	}
	return factory(cfg)
}

// CreateClassifier instantiates the classifier registered under name.
func (r *Registry) CreateClassifier(name string, cfg WakeWordConfig) (wakeword.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.classifiers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: classifier/%q", ErrNotRegistered, name)
	}
	return factory(cfg)
}
