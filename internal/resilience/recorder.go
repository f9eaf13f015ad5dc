package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/otastet/obs-motion/pkg/recorder"
)

// Compile-time check that *RecorderClient satisfies [recorder.Client].
var _ recorder.Client = (*RecorderClient)(nil)

// RecorderClient wraps a [recorder.Client] with a [CircuitBreaker] on the
// recording operations. Only connection-class failures count against the
// breaker: a remote that answers (even with [recorder.ErrRemoteBusy]) is
// healthy. While the breaker is open, calls fail immediately with
// [recorder.ErrConnection] instead of waiting out a websocket timeout.
//
// Connect bypasses the breaker; a successful redial resets it.
type RecorderClient struct {
	inner recorder.Client
	cb    *CircuitBreaker
}

// WrapRecorder wraps inner with a breaker using the given configuration.
func WrapRecorder(inner recorder.Client, cfg CircuitBreakerConfig) *RecorderClient {
	if cfg.Name == "" {
		cfg.Name = "recorder"
	}
	return &RecorderClient{
		inner: inner,
		cb:    NewCircuitBreaker(cfg),
	}
}

// Connect establishes the control connection and, on success, closes the
// breaker so recording calls flow again.
func (c *RecorderClient) Connect(ctx context.Context) error {
	if err := c.inner.Connect(ctx); err != nil {
		return err
	}
	c.cb.Reset()
	return nil
}

// StartRecording forwards through the breaker.
func (c *RecorderClient) StartRecording(ctx context.Context) error {
	return c.execute(func() error { return c.inner.StartRecording(ctx) })
}

// StopRecording forwards through the breaker.
func (c *RecorderClient) StopRecording(ctx context.Context) error {
	return c.execute(func() error { return c.inner.StopRecording(ctx) })
}

// IsRecording forwards through the breaker.
func (c *RecorderClient) IsRecording(ctx context.Context) (bool, error) {
	var active bool
	err := c.execute(func() error {
		var callErr error
		active, callErr = c.inner.IsRecording(ctx)
		return callErr
	})
	return active, err
}

// Close closes the underlying connection.
func (c *RecorderClient) Close() error {
	return c.inner.Close()
}

// State returns the breaker's current state.
func (c *RecorderClient) State() State {
	return c.cb.State()
}

// execute runs fn through the breaker, counting only connection-class errors
// as breaker failures and translating a fast-failed open circuit into
// [recorder.ErrConnection] so callers see one error family for a dead link.
func (c *RecorderClient) execute(fn func() error) error {
	var callErr error
	execErr := c.cb.Execute(func() error {
		callErr = fn()
		if callErr != nil && !errors.Is(callErr, recorder.ErrConnection) {
			// The remote answered; the link is fine.
			return nil
		}
		return callErr
	})
	if errors.Is(execErr, ErrCircuitOpen) {
		return fmt.Errorf("%w: %v", recorder.ErrConnection, execErr)
	}
	return callErr
}
