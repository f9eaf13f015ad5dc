// Package session owns the recording-session state machine: exactly one
// recording at a time against the remote recorder, with a timed auto-stop, a
// configurable retrigger policy, and a bounded stop-grace window so a slow or
// unresponsive remote can never wedge local state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/otastet/obs-motion/internal/observe"
	"github.com/otastet/obs-motion/internal/trigger"
	"github.com/otastet/obs-motion/pkg/recorder"
)

// defaultStopGrace bounds how long a stop command may take before local
// state is forced back to idle.
const defaultStopGrace = 5 * time.Second

// State enumerates the session lifecycle states.
type State string

const (
	// StateIdle means no recording is active; the next accepted trigger
	// starts one.
	StateIdle State = "idle"

	// StateRecording means a recording is active with a scheduled
	// auto-stop deadline.
	StateRecording State = "recording"

	// StateStopping is the transient window between issuing a stop command
	// and the remote confirming (or the grace period expiring).
	StateStopping State = "stopping"
)

// RetriggerPolicy governs what an accepted trigger does while a recording is
// already active.
type RetriggerPolicy string

const (
	// RetriggerExtend pushes the stop deadline forward by a full recording
	// duration from the new trigger, so continuous activity yields one
	// continuous recording. This is the default.
	RetriggerExtend RetriggerPolicy = "extend"

	// RetriggerIgnore leaves the original deadline untouched.
	RetriggerIgnore RetriggerPolicy = "ignore"
)

// IsValid reports whether p is a recognised retrigger policy.
func (p RetriggerPolicy) IsValid() bool {
	return p == RetriggerExtend || p == RetriggerIgnore
}

// Outcome describes what an accepted trigger did to the session.
type Outcome int

const (
	// OutcomeStarted means a new recording session began.
	OutcomeStarted Outcome = iota

	// OutcomeExtended means the active session's stop deadline moved forward.
	OutcomeExtended

	// OutcomeIgnored means the trigger was accepted but the ignore policy
	// left the active session unchanged.
	OutcomeIgnored

	// OutcomeBusy means the session was mid-stop and the trigger was
	// discarded without consuming the cooldown.
	OutcomeBusy
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeExtended:
		return "extended"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeBusy:
		return "busy"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Snapshot is a point-in-time view of the session for status reporting.
type Snapshot struct {
	State        State
	StartedAt    time.Time
	StopDeadline time.Time
	TriggeredBy  trigger.SourceKind
}

// Manager drives the recording session against a [recorder.Client].
//
// All state mutations happen from the single trigger-loop goroutine that owns
// the manager; HandleTrigger, Tick, and Shutdown must never be called
// concurrently. The internal lock exists only so Snapshot and State can be
// read from other goroutines (status reporter, readiness checks).
type Manager struct {
	client    recorder.Client
	duration  time.Duration
	stopGrace time.Duration
	policy    RetriggerPolicy
	metrics   *observe.Metrics
	clock     func() time.Time

	mu           sync.RWMutex
	state        State
	startedAt    time.Time
	stopDeadline time.Time
	triggeredBy  trigger.SourceKind
}

// Config holds the dependencies and tuning for a [Manager].
type Config struct {
	// Client is the remote recorder control connection.
	Client recorder.Client

	// RecordingDuration is how long a session runs absent retriggers.
	RecordingDuration time.Duration

	// StopGrace bounds how long a stop command may take before local state
	// is forced back to idle. Defaults to 5s if zero.
	StopGrace time.Duration

	// Policy is the retrigger policy. Defaults to [RetriggerExtend].
	Policy RetriggerPolicy

	// Metrics receives session instrumentation. May be nil.
	Metrics *observe.Metrics

	// Clock overrides the time source. Used in tests.
	Clock func() time.Time
}

// NewManager creates a Manager in the idle state.
func NewManager(cfg Config) *Manager {
	stopGrace := cfg.StopGrace
	if stopGrace <= 0 {
		stopGrace = defaultStopGrace
	}
	policy := cfg.Policy
	if policy == "" {
		policy = RetriggerExtend
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		client:    cfg.Client,
		duration:  cfg.RecordingDuration,
		stopGrace: stopGrace,
		policy:    policy,
		metrics:   cfg.Metrics,
		clock:     clock,
		state:     StateIdle,
	}
}

// HandleTrigger applies one accepted detection event to the state machine.
//
// From idle it starts a recording; a start failure (remote busy, connection
// lost) leaves the manager idle and returns the error so the caller can
// withhold the cooldown commit — a failed start must not block the next
// attempt. While recording, the configured retrigger policy decides between
// extending the deadline and ignoring the event. While stopping, the event
// is discarded with [OutcomeBusy].
func (m *Manager) HandleTrigger(ctx context.Context, ev trigger.Event) (Outcome, error) {
	switch m.State() {
	case StateStopping:
		slog.Info("trigger during stop, discarded", "source", ev.Source)
		return OutcomeBusy, nil

	case StateRecording:
		if m.policy == RetriggerIgnore {
			slog.Info("retrigger ignored by policy",
				"source", ev.Source,
				"stop_deadline", m.deadline(),
			)
			return OutcomeIgnored, nil
		}
		newDeadline := ev.ObservedAt.Add(m.duration)
		m.mu.Lock()
		m.stopDeadline = newDeadline
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.SessionExtensions.Add(ctx, 1)
		}
		slog.Info("recording extended",
			"source", ev.Source,
			"stop_deadline", newDeadline,
		)
		return OutcomeExtended, nil
	}

	// Idle: start a new session.
	if err := m.client.StartRecording(ctx); err != nil {
		if m.metrics != nil {
			m.metrics.RecordRecorderError(ctx, "start")
		}
		switch {
		case errors.Is(err, recorder.ErrRemoteBusy):
			slog.Warn("start refused, remote already recording", "source", ev.Source, "err", err)
		case errors.Is(err, recorder.ErrConnection):
			slog.Warn("start failed, recorder unreachable", "source", ev.Source, "err", err)
		default:
			slog.Warn("start failed", "source", ev.Source, "err", err)
		}
		return 0, fmt.Errorf("session: start recording: %w", err)
	}

	deadline := ev.ObservedAt.Add(m.duration)
	m.mu.Lock()
	m.state = StateRecording
	m.startedAt = ev.ObservedAt
	m.stopDeadline = deadline
	m.triggeredBy = ev.Source
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSessionStart(ctx, string(ev.Source))
	}
	slog.Info("recording started",
		"source", ev.Source,
		"started_at", ev.ObservedAt,
		"stop_deadline", deadline,
		"state", StateRecording,
	)
	return OutcomeStarted, nil
}

// Deadline returns the active session's auto-stop deadline. ok is false when
// no recording is active.
func (m *Manager) Deadline() (t time.Time, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateRecording {
		return time.Time{}, false
	}
	return m.stopDeadline, true
}

// Tick fires the auto-stop once the deadline has passed. A tick before the
// deadline (a stale timer after an extension) is a no-op. The stop error is
// returned so the caller can classify it (a connection failure here means the
// link needs redialing); local state is idle afterwards regardless.
func (m *Manager) Tick(ctx context.Context, now time.Time) error {
	m.mu.RLock()
	due := m.state == StateRecording && !now.Before(m.stopDeadline)
	m.mu.RUnlock()
	if !due {
		return nil
	}
	return m.stop(ctx, "deadline")
}

// Shutdown stops the active recording, if any, so no session is left dangling
// on the remote side. Returns the stop error for logging; local state is idle
// afterwards regardless.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.State() == StateIdle {
		return nil
	}
	return m.stop(ctx, "shutdown")
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns a copy of the session fields for status reporting.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:        m.state,
		StartedAt:    m.startedAt,
		StopDeadline: m.stopDeadline,
		TriggeredBy:  m.triggeredBy,
	}
}

// deadline returns the current stop deadline without the recording check.
func (m *Manager) deadline() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopDeadline
}

// stop issues the stop command inside the grace window and returns the
// manager to idle. If the remote does not confirm in time, local state is
// forced to idle anyway — local state stays authoritative for whether a new
// trigger may begin a session.
func (m *Manager) stop(ctx context.Context, reason string) error {
	m.mu.Lock()
	m.state = StateStopping
	startedAt := m.startedAt
	m.mu.Unlock()
	slog.Info("stopping recording", "reason", reason, "state", StateStopping)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.stopGrace)
	defer cancel()

	err := m.client.StopRecording(stopCtx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordRecorderError(stopCtx, "stop")
		}
		slog.Warn("stop not confirmed, forcing idle", "reason", reason, "err", err)
		err = fmt.Errorf("session: stop recording: %w", err)
	}

	elapsed := m.clock().Sub(startedAt)

	m.mu.Lock()
	m.state = StateIdle
	m.startedAt = time.Time{}
	m.stopDeadline = time.Time{}
	m.triggeredBy = ""
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSessionStop(stopCtx, reason, elapsed.Seconds())
	}
	slog.Info("recording stopped",
		"reason", reason,
		"elapsed", elapsed,
		"state", StateIdle,
	)
	return err
}
