package trigger

import "time"

// Gate debounces detection events: an event is admitted only when at least a
// full cooldown window has elapsed since the last committed trigger. The
// cooldown clock is anchored to committed triggers only — a burst of rejected
// events during cooldown never extends the window.
//
// Admission and commitment are split so the caller can withhold Commit when a
// trigger is admitted but the session start fails: a failed start must not
// consume the cooldown.
//
// Not safe for concurrent use; the gate is owned by the trigger loop.
type Gate struct {
	window       time.Duration
	lastAccepted time.Time
	armed        bool
}

// NewGate creates a Gate with the given cooldown window. A zero window
// admits every event.
func NewGate(window time.Duration) *Gate {
	return &Gate{window: window}
}

// Admit reports whether an event observed at t may trigger. It does not
// change gate state.
func (g *Gate) Admit(t time.Time) bool {
	if !g.armed || g.window == 0 {
		return true
	}
	return t.Sub(g.lastAccepted) >= g.window
}

// Commit records t as the last accepted trigger time. The recorded time is
// monotonically non-decreasing: a t earlier than the current anchor is
// ignored.
func (g *Gate) Commit(t time.Time) {
	if g.armed && t.Before(g.lastAccepted) {
		return
	}
	g.lastAccepted = t
	g.armed = true
}

// LastAccepted returns the current cooldown anchor. ok is false before the
// first commit.
func (g *Gate) LastAccepted() (t time.Time, ok bool) {
	return g.lastAccepted, g.armed
}
