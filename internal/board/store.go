package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// metaKey is the single fixed storage key holding the whole annotation map.
// The map is read-modify-written as a unit on every mutation; last writer
// wins across concurrent consoles, which is acceptable here.
const metaKey = "kah-admin-status-map"

// MetaStore persists the lead-key -> AdminMeta map.
type MetaStore interface {
	Load(ctx context.Context) (map[string]AdminMeta, error)
	Save(ctx context.Context, metas map[string]AdminMeta) error
}

// RedisMetaStore keeps the map as one JSON blob in Redis.
type RedisMetaStore struct {
	client *redis.Client
}

func NewRedisMetaStore(client *redis.Client) *RedisMetaStore {
	return &RedisMetaStore{client: client}
}

func (s *RedisMetaStore) Load(ctx context.Context) (map[string]AdminMeta, error) {
	data, err := s.client.Get(ctx, metaKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]AdminMeta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load admin meta: %w", err)
	}

	metas := make(map[string]AdminMeta)
	if err := json.Unmarshal(data, &metas); err != nil {
		return nil, fmt.Errorf("decode admin meta: %w", err)
	}
	return metas, nil
}

func (s *RedisMetaStore) Save(ctx context.Context, metas map[string]AdminMeta) error {
	data, err := json.Marshal(metas)
	if err != nil {
		return fmt.Errorf("marshal admin meta: %w", err)
	}
	if err := s.client.Set(ctx, metaKey, data, 0).Err(); err != nil {
		return fmt.Errorf("store admin meta: %w", err)
	}
	return nil
}

// MemoryMetaStore is the in-process variant for tests.
type MemoryMetaStore struct {
	mu    sync.Mutex
	metas map[string]AdminMeta
}

func NewMemoryMetaStore() *MemoryMetaStore {
	return &MemoryMetaStore{metas: map[string]AdminMeta{}}
}

func (s *MemoryMetaStore) Load(_ context.Context) (map[string]AdminMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]AdminMeta, len(s.metas))
	for k, v := range s.metas {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryMetaStore) Save(_ context.Context, metas map[string]AdminMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metas = make(map[string]AdminMeta, len(metas))
	for k, v := range metas {
		s.metas[k] = v
	}
	return nil
}
