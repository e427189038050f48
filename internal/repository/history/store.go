// Package history persists search history records to a capped list in the
// shared store. Writes are best-effort: the search path never blocks on them.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

var historyKey = domain.KeyPrefix + "search_history"

// listStore is the consumer interface for history persistence (ISP).
type listStore interface {
	RPushTrim(ctx context.Context, key string, value []byte, maxLen int) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}

// Record is one search history entry.
type Record struct {
	Query         string    `json:"query"`
	Timestamp     time.Time `json:"timestamp"`
	ChunkIDs      []string  `json:"chunk_ids"`
	ResultCount   int       `json:"result_count"`
	LatencyMillis int64     `json:"latency_ms"`
	RerankEnabled bool      `json:"rerank_enabled"`
}

// Store appends history records to a capped list.
type Store struct {
	store  listStore
	maxLen int
}

// New creates a history store keeping at most maxLen newest records.
func New(s listStore, maxLen int) *Store {
	return &Store{store: s, maxLen: maxLen}
}

// Append serializes the record and pushes it, trimming to the cap.
func (s *Store) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	if err := s.store.RPushTrim(ctx, historyKey, data, s.maxLen); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent returns up to n newest records, newest last. Records that fail to
// decode are skipped.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.store.LRange(ctx, historyKey, int64(-n), -1)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		var rec Record
		if err := json.Unmarshal(row, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
