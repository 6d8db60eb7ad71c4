package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/collectorvault/appraise/internal/model"
)

// redisNamespace prefixes every key so the cache shares a database with
// other tenants safely.
const redisNamespace = "appraise:valuation:"

// RedisStore implements Store on go-redis. Expiry is delegated to Redis
// TTLs, so DeleteExpired has nothing to do.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, eris.Wrapf(err, "redis: ping %s", addr)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests with redismock.
func NewRedisWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (*model.ValuationResult, bool, error) {
	b, err := s.rdb.Get(ctx, redisNamespace+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, eris.Wrap(err, "redis: get valuation")
	}

	var v model.ValuationResult
	if err := json.Unmarshal(b, &v); err != nil {
		// Corrupted entry, drop it and report a miss.
		_ = s.rdb.Del(ctx, redisNamespace+key).Err()
		return nil, false, nil
	}
	return &v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val *model.ValuationResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	b, err := json.Marshal(val)
	if err != nil {
		return eris.Wrap(err, "redis: marshal valuation")
	}
	return eris.Wrap(s.rdb.Set(ctx, redisNamespace+key, b, ttl).Err(), "redis: set valuation")
}

// DeleteExpired is a no-op; Redis evicts expired keys itself.
func (s *RedisStore) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}
