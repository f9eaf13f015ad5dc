// Package recorder defines the control interface to the remote recording
// service and the error taxonomy session logic classifies against.
package recorder

import (
	"context"
	"errors"
)

// ErrConnection indicates the remote recorder is unreachable or the control
// connection dropped mid-call. Session transitions treat it as a failed
// start/stop; it is never fatal to the process.
var ErrConnection = errors.New("recorder: connection error")

// ErrRemoteBusy indicates the remote recorder is already recording for an
// unrelated reason (for example a user started a recording manually).
// A busy start attempt leaves local state untouched.
var ErrRemoteBusy = errors.New("recorder: remote already recording")

// Client controls a remote recorder. Implementations must be safe for use
// from a single goroutine; the session plane never calls a Client
// concurrently.
type Client interface {
	// Connect establishes the control connection. Wraps [ErrConnection]
	// when the remote cannot be reached.
	Connect(ctx context.Context) error

	// StartRecording begins a recording on the remote. Wraps
	// [ErrRemoteBusy] when the remote is already recording and
	// [ErrConnection] on transport failure.
	StartRecording(ctx context.Context) error

	// StopRecording stops the active recording. Stopping when nothing is
	// recording is not an error. Wraps [ErrConnection] on transport failure.
	StopRecording(ctx context.Context) error

	// IsRecording reports the remote's current recording status.
	IsRecording(ctx context.Context) (bool, error)

	// Close releases the control connection. Safe to call multiple times.
	Close() error
}
