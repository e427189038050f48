package ingest

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/index"
)

// Embedder vectorizes chunk texts in bulk.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Index is the vector index contract for ingestion.
type Index interface {
	Upsert(chunkID string, vec []float32, meta index.Meta) error
	RemoveByDocument(documentID string) int
	Entries() []index.Entry
	Len() int
	Dimension() int
	Reset()
}
