package trigger

import (
	"sync"
	"time"
)

// History is a bounded ring of recently accepted trigger events, used by the
// status reporter to summarise recent activity. It enforces both a maximum
// entry count and a maximum age; entries exceeding either limit are evicted
// on every Add.
//
// All methods are safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []Event
	maxSize int
	maxAge  time.Duration
}

// NewHistory creates a History retaining at most maxSize events no older
// than maxAge.
func NewHistory(maxSize int, maxAge time.Duration) *History {
	return &History{
		entries: make([]Event, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Add appends ev and evicts entries that exceed the configured limits.
func (h *History) Add(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, ev)
	h.evict()
}

// Recent returns up to n of the newest retained events in chronological
// order (oldest first).
func (h *History) Recent(n int) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := len(h.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(h.entries)-start)
	copy(out, h.entries[start:])
	return out
}

// Since counts retained events observed at or after cutoff.
func (h *History) Since(cutoff time.Time) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].ObservedAt.Before(cutoff) {
			break
		}
		n++
	}
	return n
}

// evict removes entries that are too old or exceed maxSize. Must be called
// with h.mu held. Survivors are copied to a fresh backing array so evicted
// entries do not pin memory.
func (h *History) evict() {
	cutoff := time.Now().Add(-h.maxAge)

	start := 0
	for start < len(h.entries) && h.entries[start].ObservedAt.Before(cutoff) {
		start++
	}
	keep := h.entries[start:]

	if len(keep) > h.maxSize {
		keep = keep[len(keep)-h.maxSize:]
	}

	if start > 0 || len(keep) < len(h.entries) {
		fresh := make([]Event, len(keep), h.maxSize)
		copy(fresh, keep)
		h.entries = fresh
	}
}
