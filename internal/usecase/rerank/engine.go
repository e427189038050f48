// Package rerank reorders search candidates by a cross-encoder relevance
// model, blending the rerank score with the original cosine similarity.
// The engine degrades gracefully: any provider failure leaves the candidates
// in similarity order instead of failing the query.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Default score blend. The rerank model sees the actual text pair, so it
// dominates; similarity keeps a stabilizing share.
const (
	defaultSimilarityWeight = 0.3
	defaultRerankWeight     = 0.7
	defaultBatchSize        = 16
)

// Engine applies reranking to search candidates.
type Engine struct {
	reranker   Reranker
	batchSize  int
	simWeight  float64
	rankWeight float64
	logger     *zap.Logger
}

// Config holds rerank engine settings. Zero values fall back to defaults.
type Config struct {
	BatchSize        int
	SimilarityWeight float64
	RerankWeight     float64
}

// New creates a rerank engine. A nil reranker disables reranking entirely
// (Apply becomes a similarity-order pass-through).
func New(reranker Reranker, cfg Config, logger *zap.Logger) *Engine {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	simWeight := cfg.SimilarityWeight
	rankWeight := cfg.RerankWeight
	if simWeight == 0 && rankWeight == 0 {
		simWeight = defaultSimilarityWeight
		rankWeight = defaultRerankWeight
	}

	return &Engine{
		reranker:   reranker,
		batchSize:  batchSize,
		simWeight:  simWeight,
		rankWeight: rankWeight,
		logger:     logger,
	}
}

// Apply reranks candidates against the query and returns them sorted by the
// blended score, highest first. The boolean reports whether reranking was
// actually applied; on any provider failure the input order is returned
// unchanged and the failure is only logged. Candidates are never dropped.
func (e *Engine) Apply(ctx context.Context, query string, candidates []result.Result) ([]result.Result, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}
	if e.reranker == nil {
		return candidates, false
	}

	scores, err := e.scoreAll(ctx, query, candidates)
	if err != nil {
		metrics.RerankFallbacksTotal.Inc()
		e.logger.Warn("Rerank failed, falling back to similarity order",
			zap.Int("candidates", len(candidates)),
			zap.Error(err))
		return candidates, false
	}

	reranked := make([]result.Result, len(candidates))
	for i, c := range candidates {
		combined := e.simWeight*c.Similarity() + e.rankWeight*scores[i]
		reranked[i] = c.WithRerank(scores[i], combined)
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score() > reranked[j].Score()
	})

	return reranked, true
}

// scoreAll collects one rerank score per candidate, batching provider calls.
func (e *Engine) scoreAll(ctx context.Context, query string, candidates []result.Result) ([]float64, error) {
	scores := make([]float64, 0, len(candidates))

	for start := 0; start < len(candidates); start += e.batchSize {
		end := start + e.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		texts := make([]string, 0, end-start)
		for _, c := range candidates[start:end] {
			texts = append(texts, c.Text())
		}

		batch, err := e.reranker.Rerank(ctx, query, texts)
		if err != nil {
			return nil, fmt.Errorf("rerank batch [%d:%d]: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("rerank batch [%d:%d]: got %d scores for %d texts", start, end, len(batch), len(texts))
		}

		scores = append(scores, batch...)
	}

	return scores, nil
}
