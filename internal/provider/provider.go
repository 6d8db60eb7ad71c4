// Package provider defines the adapter contract for external price data
// sources and the registry the orchestrator discovers them through.
package provider

import (
	"context"
	"sync"

	"github.com/collectorvault/appraise/internal/model"
	"github.com/collectorvault/appraise/internal/resilience"
)

// Provider is one external price data source. Implementations are built on
// a resilience guard and fail soft: FetchComparables returns an empty slice
// when the source is throttled, erroring, or down.
type Provider interface {
	// Name returns the source identifier used in observations and logs.
	Name() string
	// Available reports whether the provider's circuit currently admits
	// calls.
	Available() bool
	// FetchComparables returns comparable price observations for the query.
	FetchComparables(ctx context.Context, q model.PriceQuery) []model.RawObservation
	// Status exposes the provider's guard state for observability.
	Status() resilience.GuardStatus
}

// Registry manages the configured providers. Iteration order is
// registration order, which keeps the orchestrator's merged fetch output
// deterministic for a given provider set.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Re-registering a name replaces the provider but
// keeps its position.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not registered.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// All returns the registered providers in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
