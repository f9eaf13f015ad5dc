package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/otastet/obs-motion/internal/trigger"
	"github.com/otastet/obs-motion/pkg/recorder"
	"github.com/otastet/obs-motion/pkg/recorder/mock"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func event(at time.Time) trigger.Event {
	return trigger.Event{Source: trigger.SourceVision, ObservedAt: at, Metric: 2.0}
}

func newTestManager(t *testing.T, client *mock.Client, policy RetriggerPolicy) *Manager {
	t.Helper()
	return NewManager(Config{
		Client:            client,
		RecordingDuration: time.Hour,
		StopGrace:         time.Second,
		Policy:            policy,
		Clock:             func() time.Time { return base },
	})
}

func TestHandleTriggerStartsFromIdle(t *testing.T) {
	t.Parallel()

	client := &mock.Client{}
	m := newTestManager(t, client, RetriggerExtend)

	outcome, err := m.HandleTrigger(context.Background(), event(base))
	if err != nil {
		t.Fatalf("HandleTrigger: %v", err)
	}
	if outcome != OutcomeStarted {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeStarted)
	}
	if got := m.State(); got != StateRecording {
		t.Errorf("state = %v, want %v", got, StateRecording)
	}
	deadline, ok := m.Deadline()
	if !ok {
		t.Fatal("Deadline() not set after start")
	}
	if want := base.Add(time.Hour); !deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", deadline, want)
	}
	if _, start, _ := client.Calls(); start != 1 {
		t.Errorf("start calls = %d, want 1", start)
	}
}

func TestHandleTriggerExtendPushesDeadline(t *testing.T) {
	t.Parallel()

	client := &mock.Client{}
	m := newTestManager(t, client, RetriggerExtend)
	ctx := context.Background()

	if _, err := m.HandleTrigger(ctx, event(base)); err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	later := base.Add(40 * time.Second)
	outcome, err := m.HandleTrigger(ctx, event(later))
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if outcome != OutcomeExtended {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeExtended)
	}
	deadline, _ := m.Deadline()
	if want := later.Add(time.Hour); !deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", deadline, want)
	}
	// The extension must not start a second remote recording.
	if _, start, _ := client.Calls(); start != 1 {
		t.Errorf("start calls = %d, want 1", start)
	}
}

func TestHandleTriggerIgnorePolicyKeepsDeadline(t *testing.T) {
	t.Parallel()

	client := &mock.Client{}
	m := newTestManager(t, client, RetriggerIgnore)
	ctx := context.Background()

	if _, err := m.HandleTrigger(ctx, event(base)); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	original, _ := m.Deadline()

	outcome, err := m.HandleTrigger(ctx, event(base.Add(time.Minute)))
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeIgnored)
	}
	if deadline, _ := m.Deadline(); !deadline.Equal(original) {
		t.Errorf("deadline moved to %v, want unchanged %v", deadline, original)
	}
}

func TestHandleTriggerStartFailureStaysIdle(t *testing.T) {
	t.Parallel()

	connErr := fmt.Errorf("%w: dial tcp: refused", recorder.ErrConnection)
	client := &mock.Client{StartErrs: []error{connErr}}
	m := newTestManager(t, client, RetriggerExtend)
	ctx := context.Background()

	if _, err := m.HandleTrigger(ctx, event(base)); !errors.Is(err, recorder.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if got := m.State(); got != StateIdle {
		t.Errorf("state after failed start = %v, want %v", got, StateIdle)
	}
	if _, ok := m.Deadline(); ok {
		t.Error("Deadline() set after failed start")
	}

	// A later trigger must be able to start normally.
	outcome, err := m.HandleTrigger(ctx, event(base.Add(time.Minute)))
	if err != nil {
		t.Fatalf("retry trigger: %v", err)
	}
	if outcome != OutcomeStarted {
		t.Errorf("retry outcome = %v, want %v", outcome, OutcomeStarted)
	}
}

func TestHandleTriggerRemoteBusyStaysIdle(t *testing.T) {
	t.Parallel()

	client := &mock.Client{StartErrs: []error{recorder.ErrRemoteBusy}}
	m := newTestManager(t, client, RetriggerExtend)

	_, err := m.HandleTrigger(context.Background(), event(base))
	if !errors.Is(err, recorder.ErrRemoteBusy) {
		t.Fatalf("err = %v, want ErrRemoteBusy", err)
	}
	if got := m.State(); got != StateIdle {
		t.Errorf("state = %v, want %v", got, StateIdle)
	}
}

func TestTickStopsAtDeadline(t *testing.T) {
	t.Parallel()

	client := &mock.Client{}
	m := newTestManager(t, client, RetriggerExtend)
	ctx := context.Background()

	if _, err := m.HandleTrigger(ctx, event(base)); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	// Before the deadline: no-op.
	m.Tick(ctx, base.Add(30*time.Minute))
	if got := m.State(); got != StateRecording {
		t.Fatalf("state after early tick = %v, want %v", got, StateRecording)
	}
	if _, _, stop := client.Calls(); stop != 0 {
		t.Fatalf("stop calls after early tick = %d, want 0", stop)
	}

	// At the deadline: stop and return to idle.
	m.Tick(ctx, base.Add(time.Hour))
	if got := m.State(); got != StateIdle {
		t.Errorf("state after deadline tick = %v, want %v", got, StateIdle)
	}
	if _, _, stop := client.Calls(); stop != 1 {
		t.Errorf("stop calls = %d, want 1", stop)
	}
	if _, ok := m.Deadline(); ok {
		t.Error("Deadline() still set after stop")
	}
}

func TestStopFailureForcesIdle(t *testing.T) {
	t.Parallel()

	client := &mock.Client{
		StopErrs: []error{fmt.Errorf("%w: write: broken pipe", recorder.ErrConnection)},
	}
	m := newTestManager(t, client, RetriggerExtend)
	ctx := context.Background()

	if _, err := m.HandleTrigger(ctx, event(base)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	m.Tick(ctx, base.Add(time.Hour))

	if got := m.State(); got != StateIdle {
		t.Errorf("state after failed stop = %v, want %v", got, StateIdle)
	}

	// Next trigger starts a fresh session.
	outcome, err := m.HandleTrigger(ctx, event(base.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("trigger after forced idle: %v", err)
	}
	if outcome != OutcomeStarted {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeStarted)
	}
}

func TestShutdownStopsActiveRecording(t *testing.T) {
	t.Parallel()

	client := &mock.Client{}
	m := newTestManager(t, client, RetriggerExtend)
	ctx := context.Background()

	if _, err := m.HandleTrigger(ctx, event(base)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := m.State(); got != StateIdle {
		t.Errorf("state = %v, want %v", got, StateIdle)
	}
	if _, _, stop := client.Calls(); stop != 1 {
		t.Errorf("stop calls = %d, want 1", stop)
	}
}

func TestShutdownIdleIsNoOp(t *testing.T) {
	t.Parallel()

	client := &mock.Client{}
	m := newTestManager(t, client, RetriggerExtend)

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, _, stop := client.Calls(); stop != 0 {
		t.Errorf("stop calls = %d, want 0", stop)
	}
}

func TestSnapshotReflectsActiveSession(t *testing.T) {
	t.Parallel()

	client := &mock.Client{}
	m := newTestManager(t, client, RetriggerExtend)

	if snap := m.Snapshot(); snap.State != StateIdle {
		t.Fatalf("idle snapshot state = %v", snap.State)
	}

	if _, err := m.HandleTrigger(context.Background(), event(base)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	snap := m.Snapshot()
	if snap.State != StateRecording {
		t.Errorf("snapshot state = %v, want %v", snap.State, StateRecording)
	}
	if snap.TriggeredBy != trigger.SourceVision {
		t.Errorf("snapshot triggered_by = %v, want %v", snap.TriggeredBy, trigger.SourceVision)
	}
	if !snap.StartedAt.Equal(base) {
		t.Errorf("snapshot started_at = %v, want %v", snap.StartedAt, base)
	}
}

func TestRetriggerPolicyIsValid(t *testing.T) {
	t.Parallel()

	for _, p := range []RetriggerPolicy{RetriggerExtend, RetriggerIgnore} {
		if !p.IsValid() {
			t.Errorf("%q.IsValid() = false", p)
		}
	}
	if RetriggerPolicy("always").IsValid() {
		t.Error(`"always".IsValid() = true`)
	}
}
