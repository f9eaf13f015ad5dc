// Package trigger implements the detection plane: sensor ports that sample
// raw signal sources on their own cadence and emit edge-triggered detection
// events, the bus that fans those events into a single consumer stream, and
// the cooldown gate that debounces accepted triggers.
package trigger

import "time"

// SourceKind identifies which sensor produced a detection event.
type SourceKind string

const (
	// SourceVision is the camera motion sensor.
	SourceVision SourceKind = "vision"

	// SourceAudio is the microphone level sensor.
	SourceAudio SourceKind = "audio"
)

// IsValid reports whether k is a recognised source kind.
func (k SourceKind) IsValid() bool {
	return k == SourceVision || k == SourceAudio
}

// Event is one detection: a sensor's reading crossed its threshold from
// below. Events are immutable values; they are consumed once by the trigger
// loop and then discarded.
type Event struct {
	// Source identifies the emitting sensor.
	Source SourceKind

	// ObservedAt is when the crossing sample was taken.
	ObservedAt time.Time

	// Metric is the raw reading that crossed the threshold.
	Metric float64
}
