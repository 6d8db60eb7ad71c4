package model

import "time"

// ValuationResult is the fused output of one valuation run. Immutable once
// produced; cached snapshots are returned as-is until they expire.
type ValuationResult struct {
	ValueLow         float64   `json:"value_low"`
	ValueMedian      float64   `json:"value_median"`
	ValueHigh        float64   `json:"value_high"`
	ObservationCount int       `json:"observation_count"`
	WindowDays       int       `json:"window_days"`
	Sources          []string  `json:"sources"`
	Confidence       float64   `json:"confidence"`
	Volatility       float64   `json:"volatility"`
	FetchedAt        time.Time `json:"fetched_at"`
}
