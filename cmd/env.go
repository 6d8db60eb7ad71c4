package main

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/collectorvault/appraise/internal/cache"
	"github.com/collectorvault/appraise/internal/config"
	"github.com/collectorvault/appraise/internal/fusion"
	"github.com/collectorvault/appraise/internal/monitoring"
	"github.com/collectorvault/appraise/internal/provider"
	"github.com/collectorvault/appraise/internal/valuation"
)

// env bundles the wired subsystems a command needs.
type env struct {
	Registry *provider.Registry
	Store    cache.Store
	Recorder *monitoring.Recorder
	Service  *valuation.Service
}

func (e *env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("cache close failed", zap.Error(err))
		}
	}
}

// initStore opens the configured cache backend and runs its migration.
func initStore(ctx context.Context) (cache.Store, error) {
	switch cfg.Cache.Driver {
	case "sqlite", "":
		st, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := cache.NewPostgres(ctx, cfg.Cache.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "redis":
		return cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPass, cfg.Cache.RedisDB)
	default:
		return nil, eris.Errorf("unknown cache driver: %s", cfg.Cache.Driver)
	}
}

// initEnv builds the provider registry, cache, and valuation service from
// the loaded config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init cache")
	}

	recorder := monitoring.NewRecorder()
	client := provider.NewClient(provider.ClientOptions{
		UserAgent:    cfg.HTTPClient.UserAgent,
		Timeout:      time.Duration(cfg.HTTPClient.TimeoutSecs) * time.Second,
		PerHostRate:  rate.Limit(cfg.HTTPClient.PerHostRate),
		PerHostBurst: cfg.HTTPClient.PerHostBurst,
	})

	registry := provider.NewRegistry()
	for _, p := range []provider.Provider{
		provider.NewScryVault(cfg.Providers.ScryVault, client, recorder),
		provider.NewCardLedger(cfg.Providers.CardLedger, client, recorder),
		provider.NewGavelBid(cfg.Providers.GavelBid, client, recorder),
	} {
		if slices.Contains(cfg.Providers.Disabled, p.Name()) {
			zap.L().Info("provider disabled by config", zap.String("provider", p.Name()))
			continue
		}
		registry.Register(p)
	}

	svc := valuation.NewService(registry, st, fusion.NewNormalizer(nil), recorder, valuation.Config{
		CacheTTL: cfg.Cache.TTL(),
		Fusion:   fusionConfig(cfg.Valuation),
	})

	return &env{
		Registry: registry,
		Store:    st,
		Recorder: recorder,
		Service:  svc,
	}, nil
}

func fusionConfig(v config.ValuationConfig) fusion.Config {
	return fusion.Config{
		IQRMultiplier:    v.IQRMultiplier,
		LowPercentile:    v.LowPercentile,
		HighPercentile:   v.HighPercentile,
		SampleWeight:     v.SampleWeight,
		DispersionWeight: v.DispersionWeight,
		SampleNorm:       v.SampleNorm,
	}
}
