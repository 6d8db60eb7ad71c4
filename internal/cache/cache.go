// Package cache persists valuation results keyed by requester identity and
// query so repeated lookups skip the provider fan-out until the entry expires.
package cache

import (
	"context"
	"time"

	"github.com/collectorvault/appraise/internal/model"
)

// DefaultTTL is how long a valuation stays fresh when the caller does not
// override it.
const DefaultTTL = 6 * time.Hour

// Store is the persistence interface for cached valuations. Get reports a
// miss with found=false; expired entries are misses. Set overwrites any
// existing entry for the key, last writer wins.
type Store interface {
	Get(ctx context.Context, key string) (*model.ValuationResult, bool, error)
	Set(ctx context.Context, key string, val *model.ValuationResult, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)
	Close() error
}
