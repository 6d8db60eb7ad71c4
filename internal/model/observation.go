package model

import (
	"math"
	"time"
)

// Condition is the standardized five-level ordinal condition scale.
type Condition int

const (
	ConditionPoor Condition = iota
	ConditionGood
	ConditionExcellent
	ConditionNearMint
	ConditionMint
)

func (c Condition) String() string {
	switch c {
	case ConditionPoor:
		return "Poor"
	case ConditionGood:
		return "Good"
	case ConditionExcellent:
		return "Excellent"
	case ConditionNearMint:
		return "Near Mint"
	case ConditionMint:
		return "Mint"
	default:
		return "Unknown"
	}
}

// MarshalText renders the condition name, so normalized observations log and
// serialize readably.
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// RawObservation is a single price point as returned by a provider, before
// normalization. Condition is the source's free-text description.
type RawObservation struct {
	Source     string    `json:"source"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	Condition  string    `json:"condition,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	ListingURL string    `json:"listing_url,omitempty"`
}

// Usable reports whether the observation carries a price the fusion engine
// can work with. Non-positive and non-finite prices are dropped.
func (o RawObservation) Usable() bool {
	return o.Price > 0 && !math.IsInf(o.Price, 0) && !math.IsNaN(o.Price)
}

// NormalizedObservation is a RawObservation after currency conversion and
// condition classification. PriceUSD is always finite and positive.
type NormalizedObservation struct {
	Source     string    `json:"source"`
	PriceUSD   float64   `json:"price_usd"`
	Condition  Condition `json:"condition"`
	ObservedAt time.Time `json:"observed_at"`
	ListingURL string    `json:"listing_url,omitempty"`
}
