package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.snapshot")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	want := []byte(`{"version":1}`)
	if err := fs.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snapshot")
	fs, _ := NewFileStore(path)
	ctx := context.Background()

	if err := fs.Save(ctx, []byte("first")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := fs.Save(ctx, []byte("second")); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.snapshot")
	fs, _ := NewFileStore(path)

	_, err := fs.Load(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewFileStore(filepath.Join(dir, "index.snapshot"))

	if err := fs.Save(context.Background(), []byte("data")); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the snapshot file, got %d entries", len(entries))
	}
}

func TestFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

type mockKV struct {
	data map[string][]byte
	err  error
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) Set(_ context.Context, key string, value []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	return nil
}

func TestKVStore_SaveLoadRoundTrip(t *testing.T) {
	kv := &mockKV{}
	ks := NewKVStore(kv)
	ctx := context.Background()

	if err := ks.Save(ctx, []byte("payload")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := ks.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected payload, got %q", got)
	}
}

func TestKVStore_LoadMissing(t *testing.T) {
	ks := NewKVStore(&mockKV{})

	_, err := ks.Load(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestKVStore_StoreError(t *testing.T) {
	ks := NewKVStore(&mockKV{err: errors.New("conn refused")})

	if err := ks.Save(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected save error")
	}
	if _, err := ks.Load(context.Background()); errors.Is(err, domain.ErrNotFound) || err == nil {
		t.Fatalf("expected transport error, got %v", err)
	}
}
