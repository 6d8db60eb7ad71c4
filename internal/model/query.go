// Package model defines the core domain types for collectible price valuation.
package model

import (
	"fmt"
	"strings"
)

// DefaultWindowDays bounds observation age when a query does not specify one.
const DefaultWindowDays = 90

// PriceQuery describes the item a caller wants valued. It is immutable for
// the duration of one orchestration call.
type PriceQuery struct {
	ItemName   string `json:"item_name"`
	Set        string `json:"set,omitempty"`
	Number     string `json:"number,omitempty"`
	Condition  string `json:"condition,omitempty"`
	WindowDays int    `json:"window_days,omitempty"`
}

// Validate checks that the query is usable.
func (q PriceQuery) Validate() error {
	if strings.TrimSpace(q.ItemName) == "" {
		return fmt.Errorf("query: item name is required")
	}
	if q.WindowDays < 0 {
		return fmt.Errorf("query: window days must not be negative")
	}
	return nil
}

// Window returns the observation window in days, applying the default when
// the query leaves it unset.
func (q PriceQuery) Window() int {
	if q.WindowDays <= 0 {
		return DefaultWindowDays
	}
	return q.WindowDays
}

// Keywords joins the identifying parts of the query into a single search
// string for provider request composition.
func (q PriceQuery) Keywords() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{q.ItemName, q.Set, q.Number} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// CacheKey builds the cache key for this query on behalf of the given caller
// identity. Identity and item identity together scope the entry.
func (q PriceQuery) CacheKey(identity string) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return strings.Join([]string{
		norm(identity),
		norm(q.ItemName),
		norm(q.Set),
		norm(q.Number),
		norm(q.Condition),
		fmt.Sprintf("%d", q.Window()),
	}, "|")
}
