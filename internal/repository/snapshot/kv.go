package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

var kvSnapshotKey = domain.KeyPrefix + "index_snapshot"

// kvStore is the consumer interface for the KV-backed snapshot store (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// KVStore keeps the snapshot under a single key in the shared store, for
// deployments without a persistent local disk.
type KVStore struct {
	store kvStore
}

// NewKVStore creates a KV-backed snapshot store.
func NewKVStore(s kvStore) *KVStore {
	return &KVStore{store: s}
}

// Save overwrites the snapshot key.
func (s *KVStore) Save(ctx context.Context, data []byte) error {
	if err := s.store.Set(ctx, kvSnapshotKey, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or domain.ErrNotFound when none exists.
func (s *KVStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.store.Get(ctx, kvSnapshotKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: snapshot", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}
