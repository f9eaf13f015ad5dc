// Package mock provides a scripted [recorder.Client] for testing.
package mock

import (
	"context"
	"sync"

	"github.com/otastet/obs-motion/pkg/recorder"
)

// Compile-time check that *Client satisfies [recorder.Client].
var _ recorder.Client = (*Client)(nil)

// Client is a test double that records calls and returns configured results.
// All methods are safe for concurrent use.
type Client struct {
	mu sync.Mutex

	// Per-call error scripts. When non-empty, each call pops the next
	// error; when exhausted (or nil), calls succeed.
	ConnectErrs []error
	StartErrs   []error
	StopErrs    []error

	// Recording is the value returned by IsRecording.
	Recording bool

	// IsRecordingErr, when set, is returned by every IsRecording call.
	IsRecordingErr error

	// Call counters.
	ConnectCalls int
	StartCalls   int
	StopCalls    int
	StatusCalls  int
	CloseCalls   int
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// Connect pops the next scripted connect error.
func (c *Client) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConnectCalls++
	return pop(&c.ConnectErrs)
}

// StartRecording pops the next scripted start error. A successful start sets
// Recording to true.
func (c *Client) StartRecording(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCalls++
	if err := pop(&c.StartErrs); err != nil {
		return err
	}
	c.Recording = true
	return nil
}

// StopRecording pops the next scripted stop error. A successful stop sets
// Recording to false.
func (c *Client) StopRecording(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCalls++
	if err := pop(&c.StopErrs); err != nil {
		return err
	}
	c.Recording = false
	return nil
}

// IsRecording returns the configured recording state.
func (c *Client) IsRecording(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StatusCalls++
	if c.IsRecordingErr != nil {
		return false, c.IsRecordingErr
	}
	return c.Recording, nil
}

// Close increments the close counter.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCalls++
	return nil
}

// Calls returns a snapshot of (connect, start, stop) call counts.
func (c *Client) Calls() (connect, start, stop int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ConnectCalls, c.StartCalls, c.StopCalls
}
