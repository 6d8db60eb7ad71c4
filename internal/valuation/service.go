// Package valuation orchestrates a price lookup end to end: cache check,
// provider fan-out, normalization, fusion, and the write-back.
package valuation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/collectorvault/appraise/internal/cache"
	"github.com/collectorvault/appraise/internal/fusion"
	"github.com/collectorvault/appraise/internal/model"
	"github.com/collectorvault/appraise/internal/monitoring"
	"github.com/collectorvault/appraise/internal/provider"
)

// The only two errors a caller can see from FetchValuation besides query
// validation. Everything else is absorbed per provider and logged.
var (
	// ErrNoProvidersAvailable means every provider's breaker was open.
	ErrNoProvidersAvailable = eris.New("valuation: no providers available")
	// ErrNoData means the providers that did respond produced no usable
	// observations for the query.
	ErrNoData = eris.New("valuation: no data for query")
)

// Config tunes the orchestrator.
type Config struct {
	// CacheTTL bounds how long a fused valuation is served from cache.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// Fusion is passed through to fusion.Fuse.
	Fusion fusion.Config `yaml:"fusion" mapstructure:"fusion"`
}

// Service runs valuations against a provider registry with an optional
// cache. A nil cache disables caching, a nil recorder disables counters.
type Service struct {
	registry   *provider.Registry
	store      cache.Store
	normalizer *fusion.Normalizer
	recorder   *monitoring.Recorder
	cfg        Config
}

// NewService wires the orchestrator. registry must not be nil.
func NewService(registry *provider.Registry, store cache.Store, normalizer *fusion.Normalizer, recorder *monitoring.Recorder, cfg Config) *Service {
	if normalizer == nil {
		normalizer = fusion.NewNormalizer(nil)
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	return &Service{
		registry:   registry,
		store:      store,
		normalizer: normalizer,
		recorder:   recorder,
		cfg:        cfg,
	}
}

// FetchValuation values one item for one requester. forceRefresh skips the
// cache read but still writes the fresh result back.
func (s *Service) FetchValuation(ctx context.Context, q model.PriceQuery, identity string, forceRefresh bool) (*model.ValuationResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	key := q.CacheKey(identity)

	if !forceRefresh {
		if cached := s.cacheRead(ctx, key); cached != nil {
			return cached, nil
		}
	}

	available := s.availableProviders(ctx)
	if len(available) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	raw := s.fetchAll(ctx, available, q)

	normalized, drops := s.normalizer.Normalize(raw)
	if drops.BadPrice > 0 || drops.UnknownCurrency > 0 {
		zap.L().Debug("dropped observations during normalization",
			zap.Int("bad_price", drops.BadPrice),
			zap.Int("unknown_currency", drops.UnknownCurrency),
		)
	}

	result, stats, err := fusion.Fuse(normalized, q, s.cfg.Fusion)
	if err != nil {
		return nil, ErrNoData
	}
	result.FetchedAt = time.Now().UTC()

	if s.recorder != nil {
		s.recorder.OutliersRemoved(stats.OutliersRemoved)
		s.recorder.ValuationCompleted()
	}

	s.cacheWrite(ctx, key, result)
	return result, nil
}

// cacheRead returns nil on a miss. Read errors are logged and treated as
// misses so a broken cache never blocks a valuation.
func (s *Service) cacheRead(ctx context.Context, key string) *model.ValuationResult {
	if s.store == nil {
		return nil
	}
	val, found, err := s.store.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache read failed, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		found = false
	}
	if s.recorder != nil {
		if found {
			s.recorder.CacheHit()
		} else {
			s.recorder.CacheMiss()
		}
	}
	if !found {
		return nil
	}
	return val
}

// cacheWrite is best effort; failure is logged and recorded, never fatal.
func (s *Service) cacheWrite(ctx context.Context, key string, val *model.ValuationResult) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, val, s.cfg.CacheTTL); err != nil {
		zap.L().Warn("cache write failed",
			zap.String("key", key),
			zap.Error(err),
		)
		if s.recorder != nil {
			s.recorder.CacheWriteFailed()
		}
	}
}

// availableProviders probes every registered provider concurrently and keeps
// registration order in the result.
func (s *Service) availableProviders(ctx context.Context) []provider.Provider {
	all := s.registry.All()
	up := make([]bool, len(all))

	var g errgroup.Group
	for i, p := range all {
		g.Go(func() error {
			up[i] = p.Available()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]provider.Provider, 0, len(all))
	for i, p := range all {
		if up[i] {
			out = append(out, p)
		}
	}
	return out
}

// fetchAll queries every available provider in parallel and merges the
// results in registration order. Adapters fail soft, so a provider that
// errors out contributes an empty slice and the fan-out always settles.
func (s *Service) fetchAll(ctx context.Context, providers []provider.Provider, q model.PriceQuery) []model.RawObservation {
	results := make([][]model.RawObservation, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			results[i] = p.FetchComparables(gctx, q)
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.RawObservation
	for i, p := range providers {
		if len(results[i]) == 0 {
			zap.L().Debug("provider returned no observations",
				zap.String("provider", p.Name()),
			)
			continue
		}
		merged = append(merged, results[i]...)
	}
	return merged
}
