// Package app wires all obs-motion subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New creates the sensor ports,
// detection bus, cooldown gate, and recorder session machinery and connects
// to the remote recorder; Run executes the trigger loop plus the supporting
// ops server and status reporter; Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithRecorderClient,
// WithSource, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/otastet/obs-motion/internal/config"
	"github.com/otastet/obs-motion/internal/health"
	"github.com/otastet/obs-motion/internal/observe"
	"github.com/otastet/obs-motion/internal/resilience"
	"github.com/otastet/obs-motion/internal/session"
	"github.com/otastet/obs-motion/internal/trigger"
	"github.com/otastet/obs-motion/pkg/recorder"
	"github.com/otastet/obs-motion/pkg/recorder/obs"
	"github.com/otastet/obs-motion/pkg/sensor"
)

// Defaults for the supporting loops.
const (
	defaultStatusInterval  = 30 * time.Second
	defaultHistorySize     = 32
	defaultHistoryAge      = time.Hour
	recentTriggerWindow    = 5 * time.Minute
	opsShutdownGracePeriod = 5 * time.Second
)

// App owns all subsystem lifetimes and drives the detect-debounce-record loop.
type App struct {
	cfg *config.Config

	client      recorder.Client
	reconnector *session.Reconnector
	manager     *session.Manager
	gate        *trigger.Gate
	bus         *trigger.Bus
	ports       []*trigger.Port
	history     *trigger.History
	healthz     *health.Handler
	metrics     *observe.Metrics

	clock          func() time.Time
	statusInterval time.Duration

	// injected sources override the registry lookup for that sensor.
	sources map[trigger.SourceKind]sensor.Source

	// handlers run in order on every accepted event.
	handlers []namedHandler

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// DetectionHandler is invoked for every accepted trigger event after the
// session manager has acted on it. Handlers extend the daemon with custom
// reactions (notifications, snapshots) without touching the trigger loop.
type DetectionHandler func(ctx context.Context, ev trigger.Event) error

type namedHandler struct {
	name string
	fn   DetectionHandler
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDetectionHandler appends a handler invoked on each accepted event.
// Handlers run in registration order; a failing handler is logged and does
// not prevent the remaining handlers from running.
func WithDetectionHandler(name string, fn DetectionHandler) Option {
	return func(a *App) {
		a.handlers = append(a.handlers, namedHandler{name: name, fn: fn})
	}
}

// WithRecorderClient injects a recorder client instead of dialing the
// configured address.
func WithRecorderClient(c recorder.Client) Option {
	return func(a *App) { a.client = c }
}

// WithSource injects a signal source for one sensor instead of creating it
// through the driver registry.
func WithSource(kind trigger.SourceKind, src sensor.Source) Option {
	return func(a *App) { a.sources[kind] = src }
}

// WithClock overrides the time source used for status reporting and the
// sensor ports. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.clock = now }
}

// WithMetrics injects a metrics instance instead of using the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithStatusInterval overrides the status reporter cadence. Used in tests.
func WithStatusInterval(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.statusInterval = d
		}
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together and establishing the
// recorder control connection. The registry supplies sensor drivers for the
// configured sensors; use Option functions to inject test doubles.
//
// New fails when the recorder is unreachable: a trigger daemon that cannot
// start recordings has nothing to do.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:            cfg,
		clock:          time.Now,
		statusInterval: defaultStatusInterval,
		sources:        make(map[trigger.SourceKind]sensor.Source),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Recorder connection ───────────────────────────────────────────
	if a.client == nil {
		a.client = obs.New(cfg.Recorder.Address, obs.WithPassword(cfg.Recorder.Password))
	}
	a.client = resilience.WrapRecorder(a.client, resilience.CircuitBreakerConfig{})
	a.reconnector = session.NewReconnector(session.ReconnectorConfig{
		Client: a.client,
	})

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Recorder.ConnectTimeout())
	defer cancel()
	if err := a.reconnector.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("app: connect recorder at %q: %w", cfg.Recorder.Address, err)
	}
	slog.Info("recorder connected", "address", cfg.Recorder.Address)

	// ── 2. Trigger plane ─────────────────────────────────────────────────
	a.bus = trigger.NewBus(cfg.Trigger.BusCapacity)
	a.gate = trigger.NewGate(cfg.Trigger.Cooldown())
	a.history = trigger.NewHistory(defaultHistorySize, defaultHistoryAge)

	if err := a.initPorts(registry); err != nil {
		return nil, fmt.Errorf("app: init sensor ports: %w", err)
	}

	// ── 3. Session manager ───────────────────────────────────────────────
	a.manager = session.NewManager(session.Config{
		Client:            a.client,
		RecordingDuration: cfg.Trigger.RecordingDuration(),
		StopGrace:         cfg.Trigger.StopGrace(),
		Policy:            cfg.Trigger.RetriggerPolicy,
		Metrics:           a.metrics,
		Clock:             a.clock,
	})

	// ── 4. Ops endpoints ─────────────────────────────────────────────────
	a.healthz = health.New(health.RecorderChecker(a.client))

	return a, nil
}

// initPorts builds one sensor port per configured sensor, resolving signal
// sources through the driver registry unless one was injected.
func (a *App) initPorts(registry *config.Registry) error {
	type binding struct {
		kind trigger.SourceKind
		cfg  *config.SensorConfig
	}
	for _, b := range []binding{
		{trigger.SourceVision, a.cfg.Sensors.Vision},
		{trigger.SourceAudio, a.cfg.Sensors.Audio},
	} {
		if b.cfg == nil {
			continue
		}
		src, ok := a.sources[b.kind]
		if !ok {
			var err error
			src, err = registry.Create(*b.cfg)
			if err != nil {
				return fmt.Errorf("sensor %s: %w", b.kind, err)
			}
		}
		port := trigger.NewPort(b.kind, src, b.cfg.Threshold, b.cfg.Interval(), a.bus,
			trigger.WithClock(a.clock),
			trigger.WithMetrics(a.metrics),
		)
		a.ports = append(a.ports, port)
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the sensor ports and blocks driving the trigger loop, the status
// reporter, and (when configured) the ops HTTP server until ctx is cancelled
// or a subsystem fails. Context cancellation is the normal way to stop and is
// not reported as an error.
func (a *App) Run(ctx context.Context) error {
	for _, p := range a.ports {
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("app: start sensor port: %w", err)
		}
	}
	a.reconnector.Monitor(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.triggerLoop(gctx) })
	g.Go(func() error { return a.statusLoop(gctx) })
	if a.cfg.Server.ListenAddr != "" {
		g.Go(func() error { return a.serveOps(gctx) })
	}

	slog.Info("obs-motion running",
		"sensors", len(a.ports),
		"cooldown", a.cfg.Trigger.Cooldown(),
		"recording_duration", a.cfg.Trigger.RecordingDuration(),
	)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// triggerLoop is the single consumer of the detection bus. It owns the
// cooldown gate and session manager; all their state transitions happen here,
// composed with the auto-stop deadline in one select.
func (a *App) triggerLoop(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var timerC <-chan time.Time
		if deadline, ok := a.manager.Deadline(); ok {
			wait := deadline.Sub(a.clock())
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
			timerC = timer.C
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.bus.C():
			a.handleDetection(ctx, ev)
		case <-timerC:
			a.handleDeadline(ctx)
		}
	}
}

// handleDeadline fires the manager's auto-stop. A stop that failed because
// the link is down kicks off a redial, same as a failed start.
func (a *App) handleDeadline(ctx context.Context) {
	if err := a.manager.Tick(ctx, a.clock()); err != nil && errors.Is(err, recorder.ErrConnection) {
		a.reconnector.NotifyDisconnect()
	}
}

// handleDetection runs one event through the cooldown gate and the session
// manager. The cooldown is committed only when the event had an effect (or
// was deliberately ignored by policy); a failed session start or a mid-stop
// discard leaves the gate untouched so the next event may retry immediately.
func (a *App) handleDetection(ctx context.Context, ev trigger.Event) {
	if !a.gate.Admit(ev.ObservedAt) {
		a.metrics.RecordTrigger(ctx, string(ev.Source), false)
		slog.Debug("trigger suppressed by cooldown",
			"source", ev.Source,
			"observed_at", ev.ObservedAt,
		)
		return
	}

	outcome, err := a.manager.HandleTrigger(ctx, ev)
	if err != nil {
		if errors.Is(err, recorder.ErrConnection) {
			a.reconnector.NotifyDisconnect()
		}
		return
	}

	switch outcome {
	case session.OutcomeStarted, session.OutcomeExtended, session.OutcomeIgnored:
		a.gate.Commit(ev.ObservedAt)
		a.metrics.RecordTrigger(ctx, string(ev.Source), true)
		a.history.Add(ev)
		a.runHandlers(ctx, ev)
	case session.OutcomeBusy:
		// Discarded mid-stop; the gate stays open for the next event.
	}
}

// runHandlers invokes the registered detection handlers in order. Each is
// independently fallible; a failure never aborts the others.
func (a *App) runHandlers(ctx context.Context, ev trigger.Event) {
	for _, h := range a.handlers {
		if err := h.fn(ctx, ev); err != nil {
			slog.Warn("detection handler failed",
				"handler", h.name,
				"source", ev.Source,
				"err", err,
			)
		}
	}
}

// statusLoop periodically logs whether the daemon is recording or monitoring,
// with a summary of recent trigger activity.
func (a *App) statusLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.reportStatus()
		}
	}
}

// reportStatus emits one status line.
func (a *App) reportStatus() {
	recent := a.history.Since(a.clock().Add(-recentTriggerWindow))
	snap := a.manager.Snapshot()
	if snap.State == session.StateIdle {
		slog.Info("status: MONITORING", "recent_triggers", recent)
		return
	}
	slog.Info("status: RECORDING",
		"source", snap.TriggeredBy,
		"since", snap.StartedAt,
		"stop_deadline", snap.StopDeadline,
		"recent_triggers", recent,
	)
}

// serveOps runs the ops HTTP server with Prometheus metrics and health
// endpoints until ctx is cancelled.
func (a *App) serveOps(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	a.healthz.Register(mux)

	srv := &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ops server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: ops server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opsShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("ops server shutdown error", "err", err)
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears the daemon down in order: sensor ports first so no new
// detections arrive, then a final stop for any active recording, then the
// recorder connection. Safe to call multiple times.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		for _, p := range a.ports {
			p.Stop()
		}

		// Drain detections already queued; nothing should act on them now.
		for {
			select {
			case ev := <-a.bus.C():
				slog.Debug("discarding queued detection during shutdown", "source", ev.Source)
				continue
			default:
			}
			break
		}

		if err := a.manager.Shutdown(ctx); err != nil {
			slog.Warn("final recording stop failed", "err", err)
		}

		if err := a.reconnector.Stop(); err != nil {
			slog.Warn("recorder close error", "err", err)
			shutdownErr = err
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// Snapshot exposes the current session view for external status consumers.
func (a *App) Snapshot() session.Snapshot {
	return a.manager.Snapshot()
}
