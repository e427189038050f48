package db

import (
	"context"
	"time"
)

// Store is the database facade. Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	KVStore
	ListStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// ListStore provides capped-list operations for append-mostly data.
type ListStore interface {
	// RPushTrim appends value and trims the list to its newest maxLen elements.
	RPushTrim(ctx context.Context, key string, value []byte, maxLen int) error
	// LRange returns elements in [start, stop] (inclusive, negative from the end).
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}
