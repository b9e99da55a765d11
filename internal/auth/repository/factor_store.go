package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kah-digital/agency-backend/internal/auth/domain"
)

const factorKeyPrefix = "admin:mfa:" // admin:mfa:{user_id} -> []Factor

// FactorStore keeps each user's enrolled TOTP factors in Redis. Factors
// have no TTL: enrollment survives until an explicit reset.
type FactorStore struct {
	client *redis.Client
}

func NewFactorStore(client *redis.Client) *FactorStore {
	return &FactorStore{client: client}
}

func (s *FactorStore) key(userID string) string {
	return factorKeyPrefix + userID
}

func (s *FactorStore) List(ctx context.Context, userID string) ([]domain.Factor, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load factors: %w", err)
	}

	var factors []domain.Factor
	if err := json.Unmarshal(data, &factors); err != nil {
		return nil, fmt.Errorf("decode factors: %w", err)
	}
	return factors, nil
}

func (s *FactorStore) Add(ctx context.Context, factor domain.Factor) error {
	factors, err := s.List(ctx, factor.UserID)
	if err != nil {
		return err
	}
	factors = append(factors, factor)
	return s.save(ctx, factor.UserID, factors)
}

func (s *FactorStore) MarkVerified(ctx context.Context, userID, factorID string) error {
	factors, err := s.List(ctx, userID)
	if err != nil {
		return err
	}
	for i := range factors {
		if factors[i].ID == factorID {
			factors[i].Verified = true
			return s.save(ctx, userID, factors)
		}
	}
	return domain.ErrFactorNotFound
}

// DeleteAll unenrolls every factor for the user, forcing re-enrollment on
// the next admin login.
func (s *FactorStore) DeleteAll(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *FactorStore) save(ctx context.Context, userID string, factors []domain.Factor) error {
	data, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("store factors: %w", err)
	}
	return nil
}
