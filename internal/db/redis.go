// Package db opens connections to the backing services the dedupe store and
// the dependency check use.
package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrjocham/apihub/internal/config"
)

type RedisOpts struct {
	Addr        string        // "127.0.0.1:6379"
	Password    string        // optional
	DB          int           // default 0
	DialTimeout time.Duration // default 5s
}

func RedisOptsFrom(cfg config.RedisConfig) RedisOpts {
	return RedisOpts{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}
}

// NewRedisClient connects and pings; the client is closed if the ping fails.
func NewRedisClient(opts RedisOpts) (*redis.Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// PingRedis opens a short-lived connection to verify the server answers.
func PingRedis(opts RedisOpts) error {
	rdb, err := NewRedisClient(opts)
	if err != nil {
		return err
	}

	return rdb.Close()
}
