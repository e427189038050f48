package redis

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/db"
)

// RPushTrim appends value to the list at key and trims it to the newest
// maxLen elements. maxLen <= 0 means unbounded.
func (s *Store) RPushTrim(ctx context.Context, key string, value []byte, maxLen int) error {
	cmd := s.b().Rpush().Key(key).Element(string(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpRPush, Err: err}
	}
	if maxLen > 0 {
		trim := s.b().Ltrim().Key(key).Start(int64(-maxLen)).Stop(-1).Build()
		if err := s.do(ctx, trim).Error(); err != nil {
			return &db.Error{Op: db.OpLTrim, Err: err}
		}
	}
	return nil
}

// LRange returns list elements in [start, stop], inclusive. Negative offsets
// count from the end.
func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	cmd := s.b().Lrange().Key(key).Start(start).Stop(stop).Build()
	rows, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpLRange, Err: err}
	}
	out := make([][]byte, len(rows))
	for i, r := range rows {
		out[i] = []byte(r)
	}
	return out, nil
}
