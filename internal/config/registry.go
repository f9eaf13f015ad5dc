package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/otastet/obs-motion/pkg/sensor"
)

// ErrDriverNotRegistered is returned by [Registry.Create] when no factory has
// been registered under the requested driver name.
var ErrDriverNotRegistered = errors.New("config: sensor driver not registered")

// SourceFactory constructs a [sensor.Source] from its configuration block.
type SourceFactory func(SensorConfig) (sensor.Source, error)

// Registry maps sensor driver names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]SourceFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]SourceFactory),
	}
}

// Register registers a sensor driver factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = factory
}

// Create instantiates a signal source using the factory registered under
// cfg.Driver. Returns [ErrDriverNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) Create(cfg SensorConfig) (sensor.Source, error) {
	r.mu.RLock()
	factory, ok := r.drivers[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotRegistered, cfg.Driver)
	}
	return factory(cfg)
}
