// Package sensor defines the raw-signal boundary between capture hardware
// integrations and the detection plane.
//
// A Source produces one scalar reading per call: a motion-intensity metric for
// cameras (changed-pixel area), a normalized level in [0, 1] for microphones.
// How the reading is obtained — in-process frame differencing, a PCM level
// meter, or an external capture helper — is up to the implementation; the
// detection plane only ever sees the float.
package sensor

import (
	"context"
	"errors"
)

// ErrSourceUnavailable indicates a transient capture failure for a single
// sample: a dropped frame, an audio buffer overrun, a crashed helper process.
// Callers retry on the next sampling tick; the error is never fatal.
var ErrSourceUnavailable = errors.New("sensor: source unavailable")

// Source produces raw signal readings for one sensor.
//
// Sample blocks until a reading is available or ctx is done. Implementations
// should wrap transient capture failures in [ErrSourceUnavailable] so callers
// can distinguish them from programming errors.
type Source interface {
	Sample(ctx context.Context) (float64, error)
}

// SourceFunc adapts a plain function to the [Source] interface.
type SourceFunc func(ctx context.Context) (float64, error)

// Sample calls f.
func (f SourceFunc) Sample(ctx context.Context) (float64, error) {
	return f(ctx)
}
