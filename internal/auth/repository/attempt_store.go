package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// attemptKey is the single fixed key holding the whole throttle map.
const attemptKey = "kah_admin_login_attempts"

// AttemptStore persists login-attempt throttle state as one blob.
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, attemptKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (s *AttemptStore) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, attemptKey, data, 0).Err()
}
