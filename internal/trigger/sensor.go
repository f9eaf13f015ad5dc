package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/otastet/obs-motion/internal/observe"
	"github.com/otastet/obs-motion/pkg/sensor"
)

// ErrAlreadyStarted is returned by [Port.Start] when the port is running.
var ErrAlreadyStarted = errors.New("trigger: sensor port already started")

// Port samples one raw signal source on a fixed cadence and publishes a
// detection event whenever the reading crosses its threshold from below
// (edge-triggered). Sustained above-threshold readings emit nothing further
// until the signal drops below the threshold again, so the event rate is
// bounded by activity onsets, not by the sample rate.
//
// The port initialises in the below-threshold state: a first sample at or
// above the threshold emits an event.
type Port struct {
	kind      SourceKind
	src       sensor.Source
	threshold float64
	interval  time.Duration
	bus       *Bus

	clock   func() time.Time
	metrics *observe.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// PortOption configures a [Port].
type PortOption func(*Port)

// WithClock overrides the timestamp source. Used in tests.
func WithClock(now func() time.Time) PortOption {
	return func(p *Port) { p.clock = now }
}

// WithMetrics attaches metric instruments for emitted detections and sample
// failures. When unset the port records no metrics.
func WithMetrics(m *observe.Metrics) PortOption {
	return func(p *Port) { p.metrics = m }
}

// NewPort creates a sensor port that samples src every interval and compares
// readings against threshold.
func NewPort(kind SourceKind, src sensor.Source, threshold float64, interval time.Duration, bus *Bus, opts ...PortOption) *Port {
	p := &Port{
		kind:      kind,
		src:       src,
		threshold: threshold,
		interval:  interval,
		bus:       bus,
		clock:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Kind returns the port's source identity.
func (p *Port) Kind() SourceKind {
	return p.kind
}

// Start begins sampling on the port's own goroutine. Returns
// [ErrAlreadyStarted] if the port is already running.
func (p *Port) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, p.kind)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running = true

	go p.sampleLoop(runCtx, done)

	slog.Info("sensor port started",
		"source", p.kind,
		"threshold", p.threshold,
		"interval", p.interval,
	)
	return nil
}

// Stop terminates sampling and blocks until the sampling goroutine has
// exited; no events are emitted after Stop returns. Safe to call at any
// time, including mid-sample, and idempotent.
func (p *Port) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.running = false
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	cancel()
	<-done
	slog.Info("sensor port stopped", "source", p.kind)
}

// sampleLoop ticks at the configured interval, samples the source, and
// publishes rising-edge crossings. A failed sample is logged and retried on
// the next tick without disturbing the edge state. The done channel is
// passed in rather than read from the struct: Stop clears p.done under the
// mutex, and the loop must close the channel Stop is waiting on.
func (p *Port) sampleLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	below := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reading, err := p.src.Sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("sample failed, retrying next tick", "source", p.kind, "err", err)
			if p.metrics != nil {
				p.metrics.RecordSampleFailure(ctx, string(p.kind))
			}
			continue
		}

		above := reading >= p.threshold
		if above && below {
			ev := Event{Source: p.kind, ObservedAt: p.clock(), Metric: reading}
			if err := p.bus.Publish(ctx, ev); err != nil {
				return
			}
			if p.metrics != nil {
				p.metrics.RecordDetection(ctx, string(p.kind))
			}
			slog.Debug("detection emitted",
				"source", p.kind,
				"metric", reading,
				"observed_at", ev.ObservedAt,
			)
		}
		below = !above
	}
}
