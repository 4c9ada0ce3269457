package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hermes/internal/domain/repository"
	"hermes/pkg/cache"
)

// KVSnapshotStore persists whole-state JSON blobs through the cache layer.
// Snapshots never expire; the engine overwrites them on every mutation.
type KVSnapshotStore struct {
	cache cache.Service
}

// NewKVSnapshotStore wraps a cache service as a snapshot store.
func NewKVSnapshotStore(c cache.Service) repository.SnapshotStore {
	return &KVSnapshotStore{cache: c}
}

func (s *KVSnapshotStore) Save(ctx context.Context, key string, value interface{}) error {
	// Marshal here rather than in the cache layer so the in-memory backend
	// stores the same string representation Redis does.
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("snapshot marshal %s: %w", key, err)
	}
	if err := s.cache.Set(ctx, key, string(data), 0); err != nil {
		return fmt.Errorf("snapshot save %s: %w", key, err)
	}
	return nil
}

func (s *KVSnapshotStore) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	var raw string
	if err := s.cache.Get(ctx, key, &raw); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("snapshot load %s: %w", key, err)
	}
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("snapshot decode %s: %w", key, err)
	}
	return true, nil
}
