package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const anonKeyPrefix = "anon:used:"

// AnonymousGate tracks how many free generations each anonymous device has
// consumed. It counts upward with INCR and compensates with DECR when the
// allowance is exceeded, so concurrent takes against the last unit cannot
// both succeed.
type AnonymousGate struct {
	client    *redis.Client
	allowance int
}

func NewAnonymousGate(client *redis.Client, allowance int) *AnonymousGate {
	return &AnonymousGate{client: client, allowance: allowance}
}

// Take consumes one unit of the device allowance. Returns false when the
// allowance is exhausted.
func (g *AnonymousGate) Take(ctx context.Context, deviceID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	key := anonKeyPrefix + deviceID
	used, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("anon gate incr: %w", err)
	}
	if used > int64(g.allowance) {
		// Over the cap: undo our increment so the counter stays honest.
		if err := g.client.Decr(ctx, key).Err(); err != nil {
			return false, fmt.Errorf("anon gate compensate: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Restore returns one previously taken unit, clamping at zero.
func (g *AnonymousGate) Restore(ctx context.Context, deviceID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	key := anonKeyPrefix + deviceID
	used, err := g.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("anon gate decr: %w", err)
	}
	if used < 0 {
		return g.client.Set(ctx, key, 0, 0).Err()
	}
	return nil
}

// Remaining reports how many free generations the device still has.
func (g *AnonymousGate) Remaining(ctx context.Context, deviceID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	used, err := g.client.Get(ctx, anonKeyPrefix+deviceID).Int()
	if err != nil {
		if err == redis.Nil {
			return g.allowance, nil
		}
		return 0, fmt.Errorf("anon gate get: %w", err)
	}
	remaining := g.allowance - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
