package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/monachad/matchfeed/internal/domain"
)

// SlotStore implements domain.SlotStore on Redis string keys. Slots carry an
// optional TTL so abandoned matches age out on their own.
type SlotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSlotStore creates a SlotStore backed by the given Client. ttl of zero
// means slots never expire.
func NewSlotStore(c *Client, ttl time.Duration) *SlotStore {
	return &SlotStore{
		rdb: c.Underlying(),
		ttl: ttl,
	}
}

// Get reads a slot. Returns domain.ErrNotFound when the key does not exist.
func (s *SlotStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get slot %s: %w", key, err)
	}
	return data, nil
}

// Set writes a slot, refreshing its TTL.
func (s *SlotStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set slot %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SlotStore = (*SlotStore)(nil)
