// Package monitoring aggregates the resilience and valuation events into
// per-provider counters and exposes them as a point-in-time snapshot.
package monitoring

import (
	"sync"
	"time"

	"github.com/collectorvault/appraise/internal/resilience"
)

// ProviderCounters accumulates events for one provider since process start.
type ProviderCounters struct {
	Retries            int    `json:"retries"`
	Failures           int    `json:"failures"`
	RateLimitWaits     int    `json:"rate_limit_waits"`
	RateLimitWaitedMS  int64  `json:"rate_limit_waited_ms"`
	BreakerTransitions int    `json:"breaker_transitions"`
	BreakerState       string `json:"breaker_state"`
	LastError          string `json:"last_error,omitempty"`
}

// Snapshot is a point-in-time view of the recorder, safe to serialize.
type Snapshot struct {
	Providers        map[string]ProviderCounters `json:"providers"`
	CacheHits        int                         `json:"cache_hits"`
	CacheMisses      int                         `json:"cache_misses"`
	CacheWriteErrors int                         `json:"cache_write_errors"`
	OutliersRemoved  int                         `json:"outliers_removed"`
	Valuations       int                         `json:"valuations"`
	CollectedAt      time.Time                   `json:"collected_at"`
}

// Recorder implements resilience.Events and collects orchestration counters.
// All methods are safe for concurrent use.
type Recorder struct {
	mu               sync.Mutex
	providers        map[string]*ProviderCounters
	cacheHits        int
	cacheMisses      int
	cacheWriteErrors int
	outliersRemoved  int
	valuations       int
}

var _ resilience.Events = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{providers: map[string]*ProviderCounters{}}
}

func (r *Recorder) counters(provider string) *ProviderCounters {
	c, ok := r.providers[provider]
	if !ok {
		c = &ProviderCounters{BreakerState: resilience.CircuitClosed.String()}
		r.providers[provider] = c
	}
	return c
}

func (r *Recorder) RetryScheduled(provider string, attempt int, backoff time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counters(provider)
	c.Retries++
	if err != nil {
		c.LastError = err.Error()
	}
}

func (r *Recorder) BreakerStateChanged(provider string, from, to resilience.CircuitState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counters(provider)
	c.BreakerTransitions++
	c.BreakerState = to.String()
}

func (r *Recorder) RateLimitWaited(provider string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counters(provider)
	c.RateLimitWaits++
	c.RateLimitWaitedMS += delay.Milliseconds()
}

func (r *Recorder) ProviderFailed(provider string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counters(provider)
	c.Failures++
	if err != nil {
		c.LastError = err.Error()
	}
}

// CacheHit records a cache read that satisfied a valuation request.
func (r *Recorder) CacheHit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheHits++
}

// CacheMiss records a cache read that fell through to the providers. Read
// errors count as misses too.
func (r *Recorder) CacheMiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheMisses++
}

// CacheWriteFailed records a best-effort cache write that did not stick.
func (r *Recorder) CacheWriteFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheWriteErrors++
}

// OutliersRemoved adds to the running count of observations dropped by the
// outlier filter.
func (r *Recorder) OutliersRemoved(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outliersRemoved += n
}

// ValuationCompleted records one successful end-to-end valuation.
func (r *Recorder) ValuationCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valuations++
}

// Snapshot copies the current counters.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := make(map[string]ProviderCounters, len(r.providers))
	for name, c := range r.providers {
		providers[name] = *c
	}
	return Snapshot{
		Providers:        providers,
		CacheHits:        r.cacheHits,
		CacheMisses:      r.cacheMisses,
		CacheWriteErrors: r.cacheWriteErrors,
		OutliersRemoved:  r.outliersRemoved,
		Valuations:       r.valuations,
		CollectedAt:      time.Now().UTC(),
	}
}
