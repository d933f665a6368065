package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onboard/internal/wizard"
)

// RedisStore persists sessions in Redis with a sliding TTL. This is the
// standard production store: sessions survive API restarts and expire on
// their own once abandoned.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store over an existing Redis client. ttl bounds how
// long an idle session survives; every Put refreshes it.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get returns the stored state, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (wizard.State, error) {
	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return wizard.State{}, ErrNotFound
		}
		return wizard.State{}, fmt.Errorf("session: redis get: %w", err)
	}

	var state wizard.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return wizard.State{}, fmt.Errorf("session: decoding state: %w", err)
	}
	return state, nil
}

// Put stores the state and refreshes the TTL.
func (s *RedisStore) Put(ctx context.Context, id string, state wizard.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: encoding state: %w", err)
	}
	if err := s.client.Set(ctx, key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
