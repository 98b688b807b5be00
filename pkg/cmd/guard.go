package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/botflow/pkg/idempotency"
)

// NewGuard returns the update dedup guard. Without a Redis URL every update is
// processed (at-least-once).
func NewGuard(ctx context.Context, redisURL, prefix string, ttl time.Duration) (idempotency.Guard, func() error, error) {
	if redisURL == "" {
		return idempotency.Noop{}, func() error { return nil }, nil
	}

	guard, err := idempotency.NewRedisGuardFromURL(redisURL, prefix, ttl)
	if err != nil {
		return nil, nil, err
	}

	err = guard.Ping(ctx)
	if err != nil {
		_ = guard.Close()

		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return guard, guard.Close, nil
}
