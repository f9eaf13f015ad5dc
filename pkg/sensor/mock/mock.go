// Package mock provides a scripted [sensor.Source] for testing.
package mock

import (
	"context"
	"sync"

	"github.com/otastet/obs-motion/pkg/sensor"
)

// Compile-time check that *Source satisfies [sensor.Source].
var _ sensor.Source = (*Source)(nil)

// Reading is one scripted Sample result.
type Reading struct {
	Value float64
	Err   error
}

// Source replays a fixed script of readings. After the script is exhausted it
// returns Hold (zero by default) forever, or blocks until ctx is cancelled
// when BlockWhenDone is set. All methods are safe for concurrent use.
type Source struct {
	mu            sync.Mutex
	script        []Reading
	next          int
	Hold          float64
	BlockWhenDone bool

	// SampleCount is incremented on every Sample call.
	SampleCount int
}

// NewSource creates a Source that replays readings in order.
func NewSource(readings ...Reading) *Source {
	return &Source{script: readings}
}

// Values is a convenience constructor for an error-free script.
func Values(vs ...float64) *Source {
	readings := make([]Reading, len(vs))
	for i, v := range vs {
		readings[i] = Reading{Value: v}
	}
	return NewSource(readings...)
}

// Sample returns the next scripted reading.
func (s *Source) Sample(ctx context.Context) (float64, error) {
	s.mu.Lock()
	s.SampleCount++
	if s.next < len(s.script) {
		r := s.script[s.next]
		s.next++
		s.mu.Unlock()
		return r.Value, r.Err
	}
	block := s.BlockWhenDone
	hold := s.Hold
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return hold, nil
}

// Remaining reports how many scripted readings have not been consumed yet.
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.script) - s.next
}
