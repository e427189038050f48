// Package index holds the in-memory vector index: exact cosine similarity
// search over all stored entries, incremental mutation, and lossless
// snapshot/restore. Exact full scan is the design choice — correctness over
// asymptotic speed at the expected scale of tens of thousands of chunks.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Meta is the lightweight per-entry snapshot used for display without
// re-reading the document.
type Meta struct {
	DocumentID string
	Text       string
	Ordinal    int
	Tokens     int
}

// Hit is a single similarity match.
type Hit struct {
	ChunkID string
	Score   float64
	Meta    Meta
}

type entry struct {
	id   string
	vec  []float32
	meta Meta
}

// Index maps chunk identifiers to vectors and metadata. All vectors share one
// dimension, established by the first upsert. Safe for concurrent use: many
// concurrent searches, exclusive mutation.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries []entry
	pos     map[string]int
}

// New creates an empty index.
func New() *Index {
	return &Index{pos: make(map[string]int)}
}

// Upsert inserts or wholesale-replaces the entry for chunkID. The first
// upsert establishes the index dimension; later vectors must match it.
func (ix *Index) Upsert(chunkID string, vec []float32, meta Meta) error {
	if chunkID == "" {
		return fmt.Errorf("chunk ID is required: %w", domain.ErrValidation)
	}
	if len(vec) == 0 {
		return fmt.Errorf("vector is required: %w", domain.ErrValidation)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dim == 0 {
		ix.dim = len(vec)
	} else if len(vec) != ix.dim {
		return fmt.Errorf("got %d dimensions, index has %d: %w", len(vec), ix.dim, domain.ErrDimensionMismatch)
	}

	v := make([]float32, len(vec))
	copy(v, vec)

	if i, ok := ix.pos[chunkID]; ok {
		// Replacement keeps the original insertion position so tie ordering
		// stays stable across re-ingestion.
		ix.entries[i] = entry{id: chunkID, vec: v, meta: meta}
		return nil
	}

	ix.pos[chunkID] = len(ix.entries)
	ix.entries = append(ix.entries, entry{id: chunkID, vec: v, meta: meta})
	return nil
}

// Remove deletes the entry for chunkID. No-op if absent.
func (ix *Index) Remove(chunkID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(chunkID)
}

// RemoveByDocument deletes every entry owned by documentID and returns the
// number removed. The matching entries are collected first, then removed
// together, so the delete is all-or-nothing. No-op if none match.
func (ix *Index) RemoveByDocument(documentID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var ids []string
	for _, e := range ix.entries {
		if e.meta.DocumentID == documentID {
			ids = append(ids, e.id)
		}
	}
	for _, id := range ids {
		ix.removeLocked(id)
	}
	return len(ids)
}

func (ix *Index) removeLocked(chunkID string) {
	i, ok := ix.pos[chunkID]
	if !ok {
		return
	}
	ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
	delete(ix.pos, chunkID)
	for id, p := range ix.pos {
		if p > i {
			ix.pos[id] = p - 1
		}
	}
}

// Search scores every stored vector against query by cosine similarity and
// returns the topN highest. Ties break by insertion order, so identical
// index state and query always yield identical ordering. topN is clamped to
// the index size.
func (ix *Index) Search(query []float32, topN int) []Hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if topN <= 0 || len(ix.entries) == 0 {
		return nil
	}

	hits := make([]Hit, len(ix.entries))
	for i, e := range ix.entries {
		hits[i] = Hit{ChunkID: e.id, Score: cosine(query, e.vec), Meta: e.meta}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if topN > len(hits) {
		topN = len(hits)
	}
	return hits[:topN]
}

// Len returns the number of stored entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dimension returns the established vector dimension, 0 when empty.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Entry pairs a chunk identifier with its stored metadata.
type Entry struct {
	ChunkID string
	Meta    Meta
}

// Entries returns a copy of all stored entries in insertion order. Vectors
// are not exposed; callers needing them go through Snapshot.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Entry, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = Entry{ChunkID: e.id, Meta: e.meta}
	}
	return out
}

// DocumentCount returns the number of distinct document identifiers.
func (ix *Index) DocumentCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	seen := make(map[string]struct{}, len(ix.entries))
	for _, e := range ix.entries {
		seen[e.meta.DocumentID] = struct{}{}
	}
	return len(seen)
}

// Reset clears all entries and the established dimension.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.dim = 0
	ix.entries = nil
	ix.pos = make(map[string]int)
}

// cosine computes dot(a,b)/(‖a‖·‖b‖), defined as 0 when either norm is zero
// or the dimensions differ. Accumulates in float64 for stability.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp float drift into [-1, 1].
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
