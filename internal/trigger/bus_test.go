package trigger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBusDeliversInOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus(4)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := Event{Source: SourceVision, ObservedAt: base.Add(time.Duration(i) * time.Second), Metric: float64(i)}
		if err := bus.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		ev := <-bus.C()
		if ev.Metric != float64(i) {
			t.Errorf("event %d: metric = %v, want %v", i, ev.Metric, float64(i))
		}
	}
}

func TestBusPublishBlocksWhenFull(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus.Publish(ctx, Event{Source: SourceAudio}); err != nil {
		t.Fatalf("first Publish: %v", err)
	}

	// The bus is full; a second publish must block until the consumer reads.
	published := make(chan error, 1)
	go func() {
		published <- bus.Publish(ctx, Event{Source: SourceAudio, Metric: 2})
	}()

	select {
	case err := <-published:
		t.Fatalf("Publish returned %v before the consumer read", err)
	case <-time.After(20 * time.Millisecond):
	}

	<-bus.C()
	select {
	case err := <-published:
		if err != nil {
			t.Fatalf("blocked Publish: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish still blocked after consumer read")
	}
}

func TestBusPublishHonoursContext(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := bus.Publish(ctx, Event{Source: SourceVision}); err != nil {
		t.Fatalf("first Publish: %v", err)
	}

	cancel()
	err := bus.Publish(ctx, Event{Source: SourceVision})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Publish on full bus with cancelled ctx: err = %v, want context.Canceled", err)
	}
}

func TestBusDefaultCapacity(t *testing.T) {
	t.Parallel()

	bus := NewBus(0)
	if got := cap(bus.ch); got != defaultBusCapacity {
		t.Errorf("cap = %d, want %d", got, defaultBusCapacity)
	}
}
