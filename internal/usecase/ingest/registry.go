package ingest

import (
	"sort"
	"sync"

	"github.com/kailas-cloud/ragdex/internal/domain/document"
)

// registry is the in-process document catalog. The index owns the vectors;
// the registry owns the document-level view (filename, chunk linkage, token
// totals) used by listing and deletion.
type registry struct {
	mu   sync.RWMutex
	docs map[string]document.Document
}

func newRegistry() *registry {
	return &registry{docs: make(map[string]document.Document)}
}

func (r *registry) put(doc document.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID()] = doc
}

func (r *registry) get(id string) (document.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	return doc, ok
}

func (r *registry) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
}

// list returns documents ordered by ingestion time (newest first, ID as a
// tiebreak), sliced by offset and limit. The second value is the total count
// before slicing.
func (r *registry) list(offset, limit int) ([]document.Document, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]document.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		all = append(all, doc)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt().Equal(all[j].CreatedAt()) {
			return all[i].CreatedAt().After(all[j].CreatedAt())
		}
		return all[i].ID() < all[j].ID()
	})

	total := len(all)
	if offset >= total {
		return []document.Document{}, total
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

func (r *registry) totalTokens() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int
	for _, doc := range r.docs {
		sum += doc.Tokens()
	}
	return sum
}

func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[string]document.Document)
}
