// Package snapshot persists serialized index snapshots so the in-memory
// vector index survives restarts. Two backends are provided: a local file
// (atomic write via temp file + rename) and a key-value store entry.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// FileStore saves snapshots to a single file on local disk.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed snapshot store at path. Parent
// directories are created on the first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: snapshot path is required", domain.ErrConfig)
	}
	return &FileStore{path: path}, nil
}

// Save writes the snapshot atomically: data goes to a temp file in the same
// directory, which is then renamed over the target.
func (s *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load returns the last saved snapshot. A missing file maps to
// domain.ErrNotFound so callers can treat a cold start as a normal case.
func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}
