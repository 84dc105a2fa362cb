package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConsumedTokenStore remembers reset token ids that were already used
type ConsumedTokenStore interface {
	// Consume marks id as used for ttl. It reports false when id was already consumed.
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
	IsConsumed(ctx context.Context, id string) (bool, error)
}

// NoopTokenStore keeps reset tokens reusable until they expire
type NoopTokenStore struct{}

func (NoopTokenStore) Consume(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NoopTokenStore) IsConsumed(context.Context, string) (bool, error)            { return false, nil }

// RedisTokenStore stores consumed ids with the remaining token lifetime
type RedisTokenStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedisTokenStore(rc *redis.Client, prefix string) *RedisTokenStore {
	return &RedisTokenStore{rc: rc, prefix: prefix}
}

func (s *RedisTokenStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisTokenStore) Consume(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.rc.SetNX(ctx, s.key(id), "1", ttl).Result()
}

func (s *RedisTokenStore) IsConsumed(ctx context.Context, id string) (bool, error) {
	n, err := s.rc.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryTokenStore is the single-instance variant of RedisTokenStore
type MemoryTokenStore struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{ids: make(map[string]time.Time)}
}

func (s *MemoryTokenStore) Consume(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, exp := range s.ids {
		if now.After(exp) {
			delete(s.ids, k)
		}
	}
	if exp, ok := s.ids[id]; ok && now.Before(exp) {
		return false, nil
	}
	s.ids[id] = now.Add(ttl)
	return true, nil
}

func (s *MemoryTokenStore) IsConsumed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.ids[id]
	return ok && time.Now().Before(exp), nil
}
