package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a claimed update id is remembered.
const DefaultTTL = 24 * time.Hour

// RedisGuard claims keys with SET NX so any process sharing the server sees the claim.
type RedisGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisGuard creates a guard storing claims under prefix.
func NewRedisGuard(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisGuard{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewRedisGuardFromURL parses a redis:// URL and creates a guard over a new client.
func NewRedisGuardFromURL(url, prefix string, ttl time.Duration) (*RedisGuard, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return NewRedisGuard(redis.NewClient(options), prefix, ttl), nil
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	claimed, err := g.client.SetNX(ctx, g.prefix+key, time.Now().UTC().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}

	return claimed, nil
}

func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}
