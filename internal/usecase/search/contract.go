package search

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
	"github.com/kailas-cloud/ragdex/internal/index"
	"github.com/kailas-cloud/ragdex/internal/repository/history"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index is the vector index contract for candidate retrieval.
type Index interface {
	Search(vector []float32, topN int) []index.Hit
	Len() int
}

// Reranker reorders candidates by relevance. The boolean reports whether
// reranking was applied or the engine fell back to similarity order.
type Reranker interface {
	Apply(ctx context.Context, query string, candidates []result.Result) ([]result.Result, bool)
}

// HistoryEmitter records executed searches off the query path.
type HistoryEmitter interface {
	Emit(rec history.Record)
}
