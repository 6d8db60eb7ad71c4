package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collectorvault/appraise/internal/model"
	"github.com/collectorvault/appraise/internal/resilience"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return true }
func (s *stubProvider) FetchComparables(context.Context, model.PriceQuery) []model.RawObservation {
	return nil
}
func (s *stubProvider) Status() resilience.GuardStatus {
	return resilience.GuardStatus{Provider: s.name}
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&stubProvider{name: "c"})
	r.Register(&stubProvider{name: "a"})
	r.Register(&stubProvider{name: "b"})

	assert.Equal(t, []string{"c", "a", "b"}, r.Names())

	providers := r.All()
	assert.Len(t, providers, 3)
	assert.Equal(t, "c", providers[0].Name())
}

func TestRegistryReplaceKeepsPosition(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &stubProvider{name: "a"}
	r.Register(first)
	r.Register(&stubProvider{name: "b"})

	second := &stubProvider{name: "a"}
	r.Register(second)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Same(t, second, r.Get("a").(*stubProvider))
}

func TestRegistryGetUnknown(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewRegistry().Get("nope"))
}
