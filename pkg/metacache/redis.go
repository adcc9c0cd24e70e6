package metacache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultGenerationKey is the Redis key holding the schema generation.
const DefaultGenerationKey = "typestore:schema_generation"

// RedisGeneration keeps the schema generation in a Redis counter.
type RedisGeneration struct {
	client *redis.Client
	key    string
}

// NewRedisGeneration returns a generation store on client. An empty key uses DefaultGenerationKey.
func NewRedisGeneration(client *redis.Client, key string) *RedisGeneration {
	if key == "" {
		key = DefaultGenerationKey
	}
	return &RedisGeneration{client: client, key: key}
}

func (g *RedisGeneration) Current(ctx context.Context) (int64, error) {
	n, err := g.client.Get(ctx, g.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema generation: %w", err)
	}
	return n, nil
}

func (g *RedisGeneration) Bump(ctx context.Context) (int64, error) {
	n, err := g.client.Incr(ctx, g.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump schema generation: %w", err)
	}
	return n, nil
}
