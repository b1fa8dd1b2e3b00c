package cache

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/demoslots/internal/redisclient"
	"github.com/redis/go-redis/v9"
)

// Redis shares cached values between API replicas so an invalidation on one
// replica is seen by all of them.
type Redis struct {
	client *redisclient.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(client *redisclient.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Redis{client: client, ttl: ttl, prefix: "demoslots:"}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Raw().Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (c *Redis) Set(ctx context.Context, key string, val []byte) error {
	return c.client.Raw().Set(ctx, c.prefix+key, val, c.ttl).Err()
}

func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.client.Raw().Del(ctx, c.prefix+key).Err()
}
