// Package cmdsource adapts an external capture helper into a [sensor.Source].
//
// The helper is a long-running command that prints one float reading per line
// on stdout (for example a script wrapping pw-cat or ffmpeg that emits a level
// every buffer). The source keeps the most recent line as the current reading;
// if the helper exits it is restarted with exponential backoff, and Sample
// reports [sensor.ErrSourceUnavailable] until fresh output arrives again.
package cmdsource

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/otastet/obs-motion/pkg/sensor"
)

// Compile-time check that *Source satisfies [sensor.Source].
var _ sensor.Source = (*Source)(nil)

// Restart backoff bounds for a crashing helper.
const (
	defaultRestartBackoff = 1 * time.Second
	maxRestartBackoff     = 30 * time.Second
)

// Source runs the helper command and exposes its latest output line as the
// current reading. All methods are safe for concurrent use.
type Source struct {
	command string
	args    []string
	backoff time.Duration

	mu     sync.Mutex
	latest float64
	fresh  bool // a reading has arrived since the last helper (re)start

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a [Source].
type Option func(*Source)

// WithRestartBackoff sets the initial delay before restarting a crashed
// helper. It doubles per consecutive failure up to 30s. The default is 1s.
func WithRestartBackoff(d time.Duration) Option {
	return func(s *Source) { s.backoff = d }
}

// New creates a Source for the given helper command. Call [Source.Start]
// before sampling and [Source.Close] when done.
func New(command string, args []string, opts ...Option) *Source {
	s := &Source{
		command: command,
		args:    args,
		backoff: defaultRestartBackoff,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the helper supervision goroutine. The helper runs until
// Close is called or ctx is done.
func (s *Source) Start(ctx context.Context) error {
	if s.command == "" {
		return fmt.Errorf("cmdsource: empty command")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.supervise(runCtx)
	return nil
}

// Close stops the helper and waits for the supervision goroutine to exit.
// Safe to call multiple times.
func (s *Source) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	return nil
}

// Sample returns the most recent reading emitted by the helper, or
// [sensor.ErrSourceUnavailable] if the helper has not produced output since
// its last (re)start.
func (s *Source) Sample(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return 0, fmt.Errorf("%w: no output from %q yet", sensor.ErrSourceUnavailable, s.command)
	}
	return s.latest, nil
}

// supervise runs the helper, restarting it with backoff when it exits.
func (s *Source) supervise(ctx context.Context) {
	defer close(s.done)

	backoff := s.backoff
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("capture helper exited, restarting",
			"command", s.command,
			"backoff", backoff,
			"err", err,
		)

		s.mu.Lock()
		s.fresh = false
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRestartBackoff {
			backoff = maxRestartBackoff
		}
	}
}

// runOnce starts the helper and consumes stdout lines until it exits.
func (s *Source) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.command, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("cmdsource: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cmdsource: start %q: %w", s.command, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, parseErr := strconv.ParseFloat(line, 64)
		if parseErr != nil {
			slog.Debug("capture helper emitted non-numeric line", "command", s.command, "line", line)
			continue
		}
		s.mu.Lock()
		s.latest = v
		s.fresh = true
		s.mu.Unlock()
	}

	return cmd.Wait()
}
