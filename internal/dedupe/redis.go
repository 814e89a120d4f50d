package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares the seen set between replicas using SET NX with an expiry.
type Redis struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedis(rdb *redis.Client, keyPrefix string, ttl time.Duration) *Redis {
	if keyPrefix == "" {
		keyPrefix = "apihub:sid:"
	}

	return &Redis{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *Redis) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.keyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

func (r *Redis) Forget(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.keyPrefix+key).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
