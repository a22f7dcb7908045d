package conversion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const candidatesKey = "conversion:candidates"

// Cache holds the list of unexpired active conversions for the read API.
// The selection of the effective row happens on every read, so a row whose
// effective_from passes while cached is picked up immediately.
type Cache interface {
	Get(ctx context.Context) ([]Conversion, bool, error)
	Set(ctx context.Context, candidates []Conversion, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context) ([]Conversion, bool, error) {
	val, err := c.rdb.Get(ctx, candidatesKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var candidates []Conversion
	if err := json.Unmarshal([]byte(val), &candidates); err != nil {
		return nil, false, err
	}
	return candidates, true, nil
}

func (c *RedisCache) Set(ctx context.Context, candidates []Conversion, ttl time.Duration) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, candidatesKey, string(data), ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, candidatesKey).Err()
}

// pick returns the most recent candidate in effect at now. candidates are
// ordered newest effective_from first.
func pick(candidates []Conversion, now time.Time) *Conversion {
	for i := range candidates {
		if candidates[i].ActiveAt(now) {
			c := candidates[i]
			return &c
		}
	}
	return nil
}
