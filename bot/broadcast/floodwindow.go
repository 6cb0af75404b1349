package broadcast

import (
	"context"
	"sync"
	"time"
)

// FloodWindow enforces a sliding-window send rate against the Telegram API.
// A send may cost more than one stamp: captions over the platform limit are
// split into two API calls and recorded as two stamps.
type FloodWindow struct {
	mu       sync.Mutex
	capacity int
	margin   time.Duration
	stamps   []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFloodWindow builds a window allowing capacity stamps per margin.
// The margin should carry a small safety factor over one second so that
// clock skew between us and the platform never trips the real limit.
func NewFloodWindow(capacity int, margin time.Duration) *FloodWindow {
	if capacity <= 0 {
		capacity = 1
	}
	if margin <= 0 {
		margin = 1050 * time.Millisecond
	}
	return &FloodWindow{
		capacity: capacity,
		margin:   margin,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until the next send fits into the window. It returns early
// with the context error when ctx is cancelled.
func (w *FloodWindow) Wait(ctx context.Context) error {
	w.mu.Lock()
	now := w.now()
	w.prune(now)
	if len(w.stamps) < w.capacity {
		w.mu.Unlock()
		return ctx.Err()
	}
	// The stamp that must expire before one more send is allowed.
	blocking := w.stamps[len(w.stamps)-w.capacity]
	wait := w.margin - now.Sub(blocking)
	w.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}
	return w.sleep(ctx, wait)
}

// Record accounts for a completed send costing n stamps.
func (w *FloodWindow) Record(n int) {
	if n <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	for i := 0; i < n; i++ {
		w.stamps = append(w.stamps, now)
	}
	w.prune(now)
}

// prune drops stamps that no longer constrain sending. Caller holds mu.
func (w *FloodWindow) prune(now time.Time) {
	cut := 0
	for cut < len(w.stamps) && now.Sub(w.stamps[cut]) >= w.margin {
		cut++
	}
	// Keep at most capacity live stamps; older ones cannot block anymore.
	if extra := len(w.stamps) - cut - w.capacity; extra > 0 {
		cut += extra
	}
	if cut > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[cut:]...)
	}
}

// Len reports the number of live stamps, for tests and debug output.
func (w *FloodWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps)
}
