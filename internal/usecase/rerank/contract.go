package rerank

import "context"

// Reranker scores texts against a query. Implemented by the rerank transport.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}
