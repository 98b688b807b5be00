// Package idempotency guards inbound updates against duplicate delivery.
package idempotency

import "context"

// Guard claims keys. Claim reports false when the key was already claimed.
type Guard interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// Noop claims every key. Without a shared store delivery is at-least-once.
type Noop struct{}

func (Noop) Claim(context.Context, string) (bool, error) {
	return true, nil
}
