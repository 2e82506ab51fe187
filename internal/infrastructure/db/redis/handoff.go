package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
)

const handoffKeyPrefix = "handoff:"

// HandoffStore holds just-generated results that could not be persisted, keyed
// by an ephemeral id and expired by TTL. Once the entry expires the result is
// gone; callers get domain.ErrDesignNotFound.
type HandoffStore struct {
	client *redis.Client
}

func NewHandoffStore(client *redis.Client) *HandoffStore {
	return &HandoffStore{client: client}
}

func (s *HandoffStore) Put(ctx context.Context, id string, result *domain.DesignResult, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("handoff marshal: %w", err)
	}
	if err := s.client.Set(ctx, handoffKeyPrefix+id, payload, ttl).Err(); err != nil {
		return fmt.Errorf("handoff set: %w", err)
	}
	return nil
}

func (s *HandoffStore) Get(ctx context.Context, id string) (*domain.DesignResult, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	payload, err := s.client.Get(ctx, handoffKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrDesignNotFound
		}
		return nil, fmt.Errorf("handoff get: %w", err)
	}

	var result domain.DesignResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("handoff unmarshal: %w", err)
	}
	return &result, nil
}
