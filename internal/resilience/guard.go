package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Events receives structured notifications from a guard. Implementations
// must be safe for concurrent use.
type Events interface {
	RetryScheduled(provider string, attempt int, backoff time.Duration, err error)
	BreakerStateChanged(provider string, from, to CircuitState)
	RateLimitWaited(provider string, delay time.Duration)
	ProviderFailed(provider string, err error)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) RetryScheduled(string, int, time.Duration, error)       {}
func (NopEvents) BreakerStateChanged(string, CircuitState, CircuitState) {}
func (NopEvents) RateLimitWaited(string, time.Duration)                  {}
func (NopEvents) ProviderFailed(string, error)                           {}

// GuardConfig controls one provider's guard.
type GuardConfig struct {
	// Provider names the guarded integration in logs and events.
	Provider string

	// FailureThreshold and Cooldown configure the circuit breaker.
	FailureThreshold int
	Cooldown         time.Duration

	// MaxRequests and WindowSpan configure the sliding-window limiter.
	MaxRequests int
	WindowSpan  time.Duration

	// MaxAttempts is the total attempt budget (including the first try);
	// InitialBackoff is the delay before the first retry, doubling after
	// each attempt.
	MaxAttempts    int
	InitialBackoff time.Duration

	// Events receives guard notifications. Nil means NopEvents.
	Events Events
}

// DefaultGuardConfig returns the standard guard settings for a provider.
func DefaultGuardConfig(provider string) GuardConfig {
	return GuardConfig{
		Provider:         provider,
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
		MaxRequests:      20,
		WindowSpan:       60 * time.Second,
		MaxAttempts:      3,
		InitialBackoff:   time.Second,
	}
}

// Guard wraps one provider's fetch operation with a circuit breaker, a
// sliding-window rate limiter, and bounded retry. State is private to the
// guard and serialized internally, so concurrent calls into one adapter
// instance are safe.
type Guard struct {
	name    string
	breaker *Breaker
	window  *Window
	cfg     GuardConfig
	events  Events

	// sleepFunc allows test injection of the backoff sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewGuard creates a guard from the given config.
func NewGuard(cfg GuardConfig) *Guard {
	events := cfg.Events
	if events == nil {
		events = NopEvents{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}

	g := &Guard{
		name:      cfg.Provider,
		cfg:       cfg,
		events:    events,
		sleepFunc: sleepCtx,
	}
	g.breaker = NewBreaker(BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.Cooldown,
		OnStateChange: func(from, to CircuitState) {
			zap.L().Info("circuit breaker state change",
				zap.String("provider", cfg.Provider),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			events.BreakerStateChanged(cfg.Provider, from, to)
		},
	})
	g.window = NewWindow(cfg.MaxRequests, cfg.WindowSpan)
	g.window.onWait = func(d time.Duration) {
		zap.L().Debug("rate limit wait",
			zap.String("provider", cfg.Provider),
			zap.Duration("delay", d),
		)
		events.RateLimitWaited(cfg.Provider, d)
	}
	return g
}

// Name returns the guarded provider's name.
func (g *Guard) Name() string { return g.name }

// Available reports whether the breaker would currently admit a call.
func (g *Guard) Available() bool { return g.breaker.Available() }

// GuardStatus is a point-in-time view of a guard's internal state.
type GuardStatus struct {
	Provider            string `json:"provider"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	WindowUsed          int    `json:"window_used"`
	WindowMax           int    `json:"window_max"`
}

// Status returns the guard's current breaker and limiter state.
func (g *Guard) Status() GuardStatus {
	failures, state := g.breaker.Counters()
	return GuardStatus{
		Provider:            g.name,
		State:               state.String(),
		ConsecutiveFailures: failures,
		WindowUsed:          g.window.Used(),
		WindowMax:           g.window.Max(),
	}
}

// Execute runs op through the guard and fails soft: on breaker rejection or
// retry exhaustion it returns the zero value and false instead of an error.
// Each attempt (including retries) consumes one rate-limiter slot. Only
// exhaustion of all attempts counts as a breaker failure; any success resets
// the breaker.
func Execute[T any](ctx context.Context, g *Guard, op func(ctx context.Context) (T, error)) (T, bool) {
	var zero T

	if !g.breaker.Allow() {
		zap.L().Debug("circuit open, short-circuiting",
			zap.String("provider", g.name),
		)
		return zero, false
	}

	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if err := g.window.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		val, err := op(ctx)
		if err == nil {
			g.breaker.RecordSuccess()
			return val, true
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if !IsTransient(err) {
			break
		}
		if attempt >= g.cfg.MaxAttempts-1 {
			break
		}

		backoff := g.cfg.InitialBackoff << attempt
		zap.L().Warn("retrying provider fetch",
			zap.String("provider", g.name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		g.events.RetryScheduled(g.name, attempt+1, backoff, err)
		if err := g.sleepFunc(ctx, backoff); err != nil {
			break
		}
	}

	g.breaker.RecordFailure()
	g.events.ProviderFailed(g.name, lastErr)
	zap.L().Warn("provider fetch failed",
		zap.String("provider", g.name),
		zap.Error(lastErr),
	)
	return zero, false
}
