package fusion

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/collectorvault/appraise/internal/model"
)

// ErrNoObservations is returned by Fuse when the incoming set is empty.
// Every other degenerate input degrades gracefully instead of failing.
var ErrNoObservations = eris.New("fusion: no observations to fuse")

// Config holds the fusion tunables. The confidence weights and the sample
// normalization constant are inherited heuristics, kept configurable rather
// than re-derived.
type Config struct {
	// IQRMultiplier scales the outlier fences. Default 1.5.
	IQRMultiplier float64 `yaml:"iqr_multiplier" mapstructure:"iqr_multiplier"`

	// LowPercentile and HighPercentile pick the reported value bounds.
	// Defaults 0.10 and 0.90; the median is always P50.
	LowPercentile  float64 `yaml:"low_percentile" mapstructure:"low_percentile"`
	HighPercentile float64 `yaml:"high_percentile" mapstructure:"high_percentile"`

	// SampleWeight and DispersionWeight combine into the confidence score;
	// SampleNorm is the observation count treated as a full sample.
	SampleWeight     float64 `yaml:"sample_weight" mapstructure:"sample_weight"`
	DispersionWeight float64 `yaml:"dispersion_weight" mapstructure:"dispersion_weight"`
	SampleNorm       int     `yaml:"sample_norm" mapstructure:"sample_norm"`
}

// DefaultConfig returns the standard fusion tunables.
func DefaultConfig() Config {
	return Config{
		IQRMultiplier:    1.5,
		LowPercentile:    0.10,
		HighPercentile:   0.90,
		SampleWeight:     0.6,
		DispersionWeight: 0.4,
		SampleNorm:       50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IQRMultiplier <= 0 {
		c.IQRMultiplier = d.IQRMultiplier
	}
	if c.LowPercentile <= 0 {
		c.LowPercentile = d.LowPercentile
	}
	if c.HighPercentile <= 0 {
		c.HighPercentile = d.HighPercentile
	}
	if c.SampleWeight <= 0 {
		c.SampleWeight = d.SampleWeight
	}
	if c.DispersionWeight <= 0 {
		c.DispersionWeight = d.DispersionWeight
	}
	if c.SampleNorm <= 0 {
		c.SampleNorm = d.SampleNorm
	}
	return c
}

// Stats reports fusion-side diagnostics alongside the result.
type Stats struct {
	OutliersRemoved int `json:"outliers_removed"`
}

// Fuse computes the valuation from normalized observations: IQR outlier
// removal, interpolated percentiles, confidence and volatility. Pure and
// deterministic for a fixed input. Fails only on an empty input set.
func Fuse(obs []model.NormalizedObservation, query model.PriceQuery, cfg Config) (*model.ValuationResult, Stats, error) {
	if len(obs) == 0 {
		return nil, Stats{}, ErrNoObservations
	}
	cfg = cfg.withDefaults()

	prices := make([]float64, len(obs))
	for i, o := range obs {
		prices[i] = o.PriceUSD
	}

	kept, removed := iqrFilter(prices, cfg.IQRMultiplier)

	sources := make(map[string]struct{}, 4)
	for _, o := range obs {
		sources[o.Source] = struct{}{}
	}
	names := make([]string, 0, len(sources))
	for s := range sources {
		names = append(names, s)
	}
	sort.Strings(names)

	n := len(kept)
	cv := coefficientOfVariation(kept)

	sampleScore := float64(n) / float64(cfg.SampleNorm)
	if sampleScore > 1 {
		sampleScore = 1
	}
	dispersionScore := 1 - cv
	if dispersionScore < 0 {
		dispersionScore = 0
	}
	confidence := cfg.SampleWeight*sampleScore + cfg.DispersionWeight*dispersionScore
	confidence = clamp01(confidence)

	return &model.ValuationResult{
		ValueLow:         percentile(kept, cfg.LowPercentile),
		ValueMedian:      percentile(kept, 0.50),
		ValueHigh:        percentile(kept, cfg.HighPercentile),
		ObservationCount: n,
		WindowDays:       query.Window(),
		Sources:          names,
		Confidence:       confidence,
		Volatility:       cv,
		// FetchedAt is stamped by the orchestrator; Fuse stays pure so
		// identical input yields identical output.
	}, Stats{OutliersRemoved: removed}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
