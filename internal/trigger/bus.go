package trigger

import "context"

// defaultBusCapacity bounds the bus channel. Detections are rare relative to
// sample intervals, so a small buffer absorbs coincident vision+audio bursts
// while keeping publishers honest via backpressure.
const defaultBusCapacity = 8

// Bus merges detection events from all sensor ports into one stream observed
// by a single consumer. Per-source FIFO order is preserved by construction
// (each port publishes from one goroutine); cross-source order is arrival
// order, not timestamp order.
type Bus struct {
	ch chan Event
}

// NewBus creates a Bus with the given channel capacity. A capacity of 0 or
// less selects the default.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultBusCapacity
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Publish delivers ev to the consumer, blocking when the bus is full.
// Returns ctx.Err() if ctx is done before the event is accepted.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C returns the consumer side of the bus.
func (b *Bus) C() <-chan Event {
	return b.ch
}
