package broadcast

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives a FloodWindow deterministically. Sleeping advances the
// clock instead of blocking.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	window *FloodWindow
}

func newTestWindow(capacity int, margin time.Duration) (*FloodWindow, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	w := NewFloodWindow(capacity, margin)
	w.now = func() time.Time { return clock.now }
	w.sleep = func(_ context.Context, d time.Duration) error {
		clock.slept = append(clock.slept, d)
		clock.now = clock.now.Add(d)
		return nil
	}
	clock.window = w
	return w, clock
}

func TestFloodWindowAllowsBurstUpToCapacity(t *testing.T) {
	w, clock := newTestWindow(5, 1050*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := w.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
		w.Record(1)
	}
	if len(clock.slept) != 0 {
		t.Fatalf("burst within capacity slept: %v", clock.slept)
	}
}

func TestFloodWindowDelaysOverflowSend(t *testing.T) {
	w, clock := newTestWindow(5, 1050*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = w.Wait(ctx)
		w.Record(1)
	}

	// The sixth send must wait until the first stamp leaves the window.
	if err := w.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(clock.slept) != 1 {
		t.Fatalf("expected one sleep, got %v", clock.slept)
	}
	if got := clock.slept[0]; got != 1050*time.Millisecond {
		t.Fatalf("slept %v, want full margin", got)
	}
	w.Record(1)
}

func TestFloodWindowPartialElapsedShortensWait(t *testing.T) {
	w, clock := newTestWindow(2, 1050*time.Millisecond)
	ctx := context.Background()

	_ = w.Wait(ctx)
	w.Record(1)
	clock.now = clock.now.Add(400 * time.Millisecond)
	_ = w.Wait(ctx)
	w.Record(1)

	if err := w.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	// 400ms of the margin already elapsed for the blocking stamp.
	if got := clock.slept[len(clock.slept)-1]; got != 650*time.Millisecond {
		t.Fatalf("slept %v, want 650ms", got)
	}
}

func TestFloodWindowDoubleStampHalvesBurst(t *testing.T) {
	w, clock := newTestWindow(4, 1050*time.Millisecond)
	ctx := context.Background()

	// Two long messages cost two stamps each and fill the window.
	for i := 0; i < 2; i++ {
		_ = w.Wait(ctx)
		w.Record(2)
	}
	if len(clock.slept) != 0 {
		t.Fatalf("unexpected sleeps: %v", clock.slept)
	}
	if err := w.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(clock.slept) != 1 {
		t.Fatalf("third send should have waited, sleeps: %v", clock.slept)
	}
}

func TestFloodWindowExpiredStampsFreeSlots(t *testing.T) {
	w, clock := newTestWindow(3, 1050*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = w.Wait(ctx)
		w.Record(1)
	}
	clock.now = clock.now.Add(2 * time.Second)

	if err := w.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(clock.slept) != 0 {
		t.Fatalf("expired stamps still blocked: %v", clock.slept)
	}
	if w.Len() != 0 {
		t.Fatalf("stale stamps kept: %d", w.Len())
	}
}

func TestFloodWindowWaitHonorsCancelledContext(t *testing.T) {
	w, _ := newTestWindow(1, 1050*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
