package resilience

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives a Window deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) install(w *Window) {
	w.nowFunc = func() time.Time { return c.now }
	w.sleepFunc = func(_ context.Context, d time.Duration) error {
		c.now = c.now.Add(d)
		return nil
	}
}

func TestWindow_AdmitsUpToMax(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	w := NewWindow(3, time.Minute)
	clk.install(w)

	for i := 0; i < 3; i++ {
		if err := w.Wait(context.Background()); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if got := w.Used(); got != 3 {
		t.Errorf("expected 3 slots used, got %d", got)
	}
}

func TestWindow_DelaysUntilOldestExits(t *testing.T) {
	start := time.Now()
	clk := &fakeClock{now: start}
	w := NewWindow(2, time.Minute)
	clk.install(w)

	_ = w.Wait(context.Background()) // t=0
	clk.now = start.Add(10 * time.Second)
	_ = w.Wait(context.Background()) // t=10s

	// Budget exhausted: the third call must wait until t=60s when the
	// first timestamp exits the window.
	if err := w.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clk.now.Before(start.Add(time.Minute)) {
		t.Errorf("third call departed at %v, before the oldest left the window", clk.now.Sub(start))
	}
}

func TestWindow_NeverExceedsMaxPerSpan(t *testing.T) {
	start := time.Now()
	clk := &fakeClock{now: start}
	w := NewWindow(5, time.Minute)
	clk.install(w)

	var departures []time.Time
	for i := 0; i < 20; i++ {
		if err := w.Wait(context.Background()); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		departures = append(departures, clk.now)
	}

	// No rolling 60s span may contain more than 5 departures.
	for i := range departures {
		count := 0
		for j := i; j < len(departures); j++ {
			if departures[j].Sub(departures[i]) < time.Minute {
				count++
			}
		}
		if count > 5 {
			t.Fatalf("window starting at departure %d contains %d calls", i, count)
		}
	}
}

func TestWindow_WaitCancellation(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	w := NewWindow(1, time.Minute)
	clk.install(w)
	w.sleepFunc = sleepCtx // real sleep so cancellation matters

	_ = w.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Wait(ctx); err == nil {
		t.Error("expected context error from cancelled wait")
	}
}

func TestWindow_ReportsWaits(t *testing.T) {
	start := time.Now()
	clk := &fakeClock{now: start}
	w := NewWindow(1, time.Minute)
	clk.install(w)

	var waits []time.Duration
	w.onWait = func(d time.Duration) { waits = append(waits, d) }

	_ = w.Wait(context.Background())
	_ = w.Wait(context.Background())

	if len(waits) == 0 {
		t.Fatal("expected at least one recorded wait")
	}
	if waits[0] != time.Minute {
		t.Errorf("expected 60s wait, got %v", waits[0])
	}
}
