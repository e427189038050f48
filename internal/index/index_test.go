package index

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func mustUpsert(t *testing.T, ix *Index, id string, vec []float32, docID string) {
	t.Helper()
	if err := ix.Upsert(id, vec, Meta{DocumentID: docID, Text: "text " + id}); err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
}

func TestUpsert_EstablishesDimension(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a", []float32{1, 0, 0}, "doc1")

	if ix.Dimension() != 3 {
		t.Errorf("dimension = %d, want 3", ix.Dimension())
	}

	err := ix.Upsert("b", []float32{1, 0}, Meta{DocumentID: "doc1"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("failed upsert must not be stored, len = %d", ix.Len())
	}
}

func TestUpsert_ReplacesWholesale(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a", []float32{1, 0}, "doc1")
	if err := ix.Upsert("a", []float32{0, 1}, Meta{DocumentID: "doc1", Text: "replaced"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if ix.Len() != 1 {
		t.Fatalf("len = %d, want 1", ix.Len())
	}
	hits := ix.Search([]float32{0, 1}, 1)
	if hits[0].Meta.Text != "replaced" {
		t.Errorf("metadata not replaced: %q", hits[0].Meta.Text)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("vector not replaced, score = %f", hits[0].Score)
	}
}

func TestSearch_SelfSimilarityIsOne(t *testing.T) {
	ix := New()
	vec := []float32{0.3, -0.7, 0.2, 0.9}
	mustUpsert(t, ix, "self", vec, "doc1")

	hits := ix.Search(vec, 1)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if math.Abs(hits[0].Score-1.0) > 1e-9 {
		t.Errorf("self similarity = %v, want 1.0", hits[0].Score)
	}
}

func TestSearch_ZeroVectorScoresZero(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a", []float32{1, 2, 3}, "doc1")

	hits := ix.Search([]float32{0, 0, 0}, 1)
	if hits[0].Score != 0 {
		t.Errorf("zero query vector score = %v, want 0", hits[0].Score)
	}
}

func TestSearch_OrderedAndClamped(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "far", []float32{0, 1}, "doc1")
	mustUpsert(t, ix, "near", []float32{1, 0.1}, "doc1")
	mustUpsert(t, ix, "exact", []float32{1, 0}, "doc1")

	hits := ix.Search([]float32{1, 0}, 10)
	if len(hits) != 3 {
		t.Fatalf("topN must clamp to index size, got %d", len(hits))
	}
	want := []string{"exact", "near", "far"}
	for i, id := range want {
		if hits[i].ChunkID != id {
			t.Errorf("hit %d = %s, want %s", i, hits[i].ChunkID, id)
		}
	}
}

func TestSearch_TiesBreakByInsertionOrder(t *testing.T) {
	ix := New()
	// Same direction, same cosine score.
	mustUpsert(t, ix, "first", []float32{2, 0}, "doc1")
	mustUpsert(t, ix, "second", []float32{4, 0}, "doc1")
	mustUpsert(t, ix, "third", []float32{1, 0}, "doc1")

	for run := 0; run < 5; run++ {
		hits := ix.Search([]float32{1, 0}, 3)
		want := []string{"first", "second", "third"}
		for i, id := range want {
			if hits[i].ChunkID != id {
				t.Fatalf("run %d: hit %d = %s, want %s", run, i, hits[i].ChunkID, id)
			}
		}
	}
}

func TestSearch_Deterministic(t *testing.T) {
	ix := New()
	for i := 0; i < 50; i++ {
		vec := []float32{float32(i%7) - 3, float32(i%5) - 2, float32(i % 3)}
		mustUpsert(t, ix, fmt.Sprintf("c%d", i), vec, fmt.Sprintf("doc%d", i%4))
	}
	query := []float32{1, -1, 2}
	first := ix.Search(query, 20)
	for run := 0; run < 10; run++ {
		again := ix.Search(query, 20)
		for i := range first {
			if first[i].ChunkID != again[i].ChunkID || first[i].Score != again[i].Score {
				t.Fatalf("run %d: ordering not deterministic at %d", run, i)
			}
		}
	}
}

func TestRemove_Idempotent(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a", []float32{1, 0}, "doc1")
	mustUpsert(t, ix, "b", []float32{0, 1}, "doc1")

	ix.Remove("a")
	if ix.Len() != 1 {
		t.Fatalf("len = %d, want 1", ix.Len())
	}
	ix.Remove("a") // second remove is a silent no-op
	ix.Remove("never-existed")
	if ix.Len() != 1 {
		t.Errorf("len = %d, want 1", ix.Len())
	}
}

func TestRemoveByDocument(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a0", []float32{1, 0}, "docA")
	mustUpsert(t, ix, "b0", []float32{0, 1}, "docB")
	mustUpsert(t, ix, "a1", []float32{1, 1}, "docA")

	if n := ix.RemoveByDocument("docA"); n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if ix.Len() != 1 {
		t.Errorf("len = %d, want 1", ix.Len())
	}
	hits := ix.Search([]float32{0, 1}, 10)
	for _, h := range hits {
		if h.Meta.DocumentID == "docA" {
			t.Errorf("entry %s from removed document still present", h.ChunkID)
		}
	}

	// Unknown document is a silent no-op, not an error.
	if n := ix.RemoveByDocument("docA"); n != 0 {
		t.Errorf("second remove returned %d, want 0", n)
	}
	if n := ix.RemoveByDocument("unknown"); n != 0 {
		t.Errorf("unknown document remove returned %d, want 0", n)
	}
}

func TestRemove_KeepsSearchConsistent(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a", []float32{1, 0}, "doc1")
	mustUpsert(t, ix, "b", []float32{0.9, 0.1}, "doc2")
	mustUpsert(t, ix, "c", []float32{0, 1}, "doc3")

	ix.Remove("a")
	hits := ix.Search([]float32{1, 0}, 3)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "b" {
		t.Errorf("best hit = %s, want b", hits[0].ChunkID)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a", []float32{0.1, 0.2, 0.3}, "docA")
	mustUpsert(t, ix, "b", []float32{-0.5, 0.4, 0.9}, "docA")
	mustUpsert(t, ix, "c", []float32{0.7, -0.1, 0.2}, "docB")

	data, err := ix.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := New()
	if err := restored.Restore(data); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if restored.Len() != ix.Len() || restored.Dimension() != ix.Dimension() {
		t.Fatalf("restored len/dim = %d/%d, want %d/%d",
			restored.Len(), restored.Dimension(), ix.Len(), ix.Dimension())
	}

	probes := [][]float32{
		{1, 0, 0},
		{0.2, 0.2, 0.2},
		{-1, 0.5, 0.3},
	}
	for _, probe := range probes {
		orig := ix.Search(probe, 3)
		rest := restored.Search(probe, 3)
		for i := range orig {
			if orig[i].ChunkID != rest[i].ChunkID || orig[i].Score != rest[i].Score {
				t.Errorf("probe %v: result %d differs after round trip", probe, i)
			}
			if orig[i].Meta != rest[i].Meta {
				t.Errorf("probe %v: metadata %d differs after round trip", probe, i)
			}
		}
	}
}

func TestRestore_FailureLeavesStateUntouched(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "keep", []float32{1, 0}, "doc1")

	if err := ix.Restore([]byte("{not json")); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
	if ix.Len() != 1 || ix.Dimension() != 2 {
		t.Errorf("failed restore mutated state: len=%d dim=%d", ix.Len(), ix.Dimension())
	}
	hits := ix.Search([]float32{1, 0}, 1)
	if len(hits) != 1 || hits[0].ChunkID != "keep" {
		t.Error("existing entry lost after failed restore")
	}
}

func TestReset(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a", []float32{1, 0}, "doc1")
	ix.Reset()

	if ix.Len() != 0 || ix.Dimension() != 0 || ix.DocumentCount() != 0 {
		t.Errorf("reset left state: len=%d dim=%d docs=%d", ix.Len(), ix.Dimension(), ix.DocumentCount())
	}
	// A new dimension can be established after reset.
	if err := ix.Upsert("b", []float32{1, 2, 3, 4}, Meta{DocumentID: "doc2"}); err != nil {
		t.Fatalf("upsert after reset: %v", err)
	}
	if ix.Dimension() != 4 {
		t.Errorf("dimension after reset = %d, want 4", ix.Dimension())
	}
}

func TestDocumentCount(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a0", []float32{1, 0}, "docA")
	mustUpsert(t, ix, "a1", []float32{0, 1}, "docA")
	mustUpsert(t, ix, "b0", []float32{1, 1}, "docB")

	if n := ix.DocumentCount(); n != 2 {
		t.Errorf("document count = %d, want 2", n)
	}
}

func TestEntries_InsertionOrder(t *testing.T) {
	ix := New()
	mustUpsert(t, ix, "a0", []float32{1, 0}, "docA")
	mustUpsert(t, ix, "b0", []float32{0, 1}, "docB")
	mustUpsert(t, ix, "a1", []float32{1, 1}, "docA")

	entries := ix.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	want := []string{"a0", "b0", "a1"}
	for i, e := range entries {
		if e.ChunkID != want[i] {
			t.Errorf("entries[%d] = %s, want %s", i, e.ChunkID, want[i])
		}
	}
	if entries[0].Meta.DocumentID != "docA" {
		t.Errorf("metadata missing: %+v", entries[0].Meta)
	}
}

func TestConcurrentSearchAndMutation(t *testing.T) {
	ix := New()
	for i := 0; i < 100; i++ {
		mustUpsert(t, ix, fmt.Sprintf("c%d", i), []float32{float32(i), 1}, "doc1")
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				switch w % 3 {
				case 0:
					ix.Search([]float32{1, float32(i)}, 10)
				case 1:
					_ = ix.Upsert(fmt.Sprintf("w%d-%d", w, i), []float32{float32(i), 2}, Meta{DocumentID: "doc2"})
				default:
					ix.Remove(fmt.Sprintf("c%d", i))
				}
			}
		}(w)
	}
	wg.Wait()
}
