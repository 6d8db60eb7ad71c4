// Package resilience guards provider integrations with a circuit breaker,
// a sliding-window rate limiter, and bounded retry with backoff.
package resilience

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state; requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many consecutive failures; requests short-circuit.
	CircuitOpen
	// CircuitHalfOpen allows a single probe request to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 5.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a half-open probe
	// is permitted. Default: 60s.
	Cooldown time.Duration

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(from, to CircuitState)
}

// Breaker implements the circuit breaker pattern for a single provider.
// The half-open state admits exactly one probe call at a time.
type Breaker struct {
	cfg BreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	lastFailureTime     time.Time
	probeInFlight       bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Breaker{
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Available reports whether a call would currently be admitted, without
// consuming the half-open probe slot. Used by the orchestrator's
// availability probe to exclude open providers from fan-out.
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		return b.cooledDown() && !b.probeInFlight
	case CircuitHalfOpen:
		return !b.probeInFlight
	default:
		return false
	}
}

// Allow admits or rejects a call. After the cooldown elapses it transitions
// an open circuit to half-open and claims the single probe slot; the result
// of the probe must be reported via RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if !b.cooledDown() {
			return false
		}
		b.transition(CircuitHalfOpen)
		b.probeInFlight = true
		return true
	case CircuitHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false
	b.consecutiveFailures = 0
	if b.state != CircuitClosed {
		b.transition(CircuitClosed)
	}
}

// RecordFailure increments the consecutive failure count, opening the
// circuit at the threshold. A half-open probe failure re-opens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false
	b.consecutiveFailures++
	b.lastFailureTime = b.nowFunc()

	switch b.state {
	case CircuitClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		b.transition(CircuitOpen)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counters returns the consecutive failure count and state for observability.
func (b *Breaker) Counters() (consecutiveFailures int, state CircuitState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures, b.state
}

func (b *Breaker) cooledDown() bool {
	return b.nowFunc().Sub(b.lastFailureTime) >= b.cfg.Cooldown
}

func (b *Breaker) transition(to CircuitState) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
