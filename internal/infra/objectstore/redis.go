package objectstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps an existing redis client as an object store backend. The
// client may be shared with the rate limiter.
func NewRedis(client redis.UniversalClient, prefix string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) Name() string {
	return "redis"
}

func (r *Redis) PutObject(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, r.prefix+":"+key, data, 0).Err()
}

func (r *Redis) GetObject(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Redis) URL(key string) string {
	return "redis://" + r.prefix + "/" + key
}
