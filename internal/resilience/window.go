package resilience

import (
	"context"
	"sync"
	"time"
)

// Window is a sliding-window rate limiter: at most Max calls may depart
// within any trailing Span. When the budget is exhausted, Wait blocks until
// the oldest call leaves the window and re-checks; calls are delayed, never
// dropped.
type Window struct {
	max  int
	span time.Duration

	mu     sync.Mutex
	stamps []time.Time // departure times, ascending

	// nowFunc and sleepFunc allow test injection of time.
	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error

	// onWait, if set, is called with the computed delay before sleeping.
	onWait func(d time.Duration)
}

// NewWindow creates a sliding-window limiter admitting max calls per span.
func NewWindow(max int, span time.Duration) *Window {
	if max <= 0 {
		max = 1
	}
	if span <= 0 {
		span = 60 * time.Second
	}
	return &Window{
		max:       max,
		span:      span,
		nowFunc:   time.Now,
		sleepFunc: sleepCtx,
	}
}

// Wait blocks until the limiter admits one call, consuming a slot. It
// returns early only when ctx is cancelled.
func (w *Window) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.nowFunc()
		w.prune(now)
		if len(w.stamps) < w.max {
			w.stamps = append(w.stamps, now)
			w.mu.Unlock()
			return nil
		}
		delay := w.span - now.Sub(w.stamps[0])
		w.mu.Unlock()

		if delay <= 0 {
			continue
		}
		if w.onWait != nil {
			w.onWait(delay)
		}
		if err := w.sleepFunc(ctx, delay); err != nil {
			return err
		}
	}
}

// Used returns how many slots are currently consumed within the window.
func (w *Window) Used() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.nowFunc())
	return len(w.stamps)
}

// Max returns the window's call budget.
func (w *Window) Max() int {
	return w.max
}

// prune drops timestamps that have left the trailing window. Caller holds mu.
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
