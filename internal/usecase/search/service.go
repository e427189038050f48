// Package search orchestrates the retrieval pipeline: validate the request,
// embed the query, over-fetch candidates from the vector index, filter by
// similarity threshold, optionally rerank, and cut to the final top K.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/repository/history"
	"github.com/kailas-cloud/ragdex/internal/retry"
)

const maxQueryRunes = 8192

// Request is a search query with optional overrides. Nil optional fields take
// the configured defaults.
type Request struct {
	Query        string
	TopK         int // 0 means the configured default
	Threshold    *float64
	EnableRerank *bool
}

// Response is the outcome of one search.
type Response struct {
	Results     []result.Result
	Reranked    bool
	TookMillis  int64
	TotalTokens int
}

// Config holds search pipeline settings.
type Config struct {
	DefaultTopK int
	MaxTopK     int
	// CandidateMultiplier over-fetches TopK*N candidates before reranking,
	// giving the reranker a wider pool to promote from.
	CandidateMultiplier int
	DefaultThreshold    float64
	RerankEnabled       bool
	RetryAttempts       int
	RetryBaseDelay      time.Duration
	EmbedTimeout        time.Duration
}

// Service runs the search pipeline.
type Service struct {
	embed  Embedder
	idx    Index
	rerank Reranker
	hist   HistoryEmitter
	cfg    Config
	logger *zap.Logger
}

// New creates a search service. hist may be nil to disable history emission.
func New(embed Embedder, idx Index, rerank Reranker, hist HistoryEmitter, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 100
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 2
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 30 * time.Second
	}

	return &Service{
		embed:  embed,
		idx:    idx,
		rerank: rerank,
		hist:   hist,
		cfg:    cfg,
		logger: logger,
	}
}

// Search executes the full retrieval pipeline for one query.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	topK, threshold, useRerank, err := s.resolve(req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("validation_error").Inc()
		return Response{}, err
	}

	query := strings.TrimSpace(req.Query)

	// Empty index answers without touching the embedding provider.
	if s.idx.Len() == 0 {
		metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
		return s.finish(query, Response{Results: []result.Result{}}, start, useRerank), nil
	}

	embResult, err := s.embedQuery(ctx, query)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return Response{}, err
	}

	candidateN := topK * s.cfg.CandidateMultiplier
	hits := s.idx.Search(embResult.Embedding, candidateN)

	candidates := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		candidates = append(candidates, result.New(h.ChunkID, h.Meta.DocumentID, h.Meta.Text, h.Score))
	}

	reranked := false
	if useRerank && s.rerank != nil {
		candidates, reranked = s.rerank.Apply(ctx, query, candidates)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	for i := range candidates {
		candidates[i] = candidates[i].WithRank(i + 1)
	}

	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()

	resp := Response{
		Results:     candidates,
		Reranked:    reranked,
		TotalTokens: embResult.TotalTokens,
	}
	return s.finish(query, resp, start, useRerank), nil
}

// resolve applies defaults and validates the request.
func (s *Service) resolve(req Request) (topK int, threshold float64, useRerank bool, err error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return 0, 0, false, fmt.Errorf("query is required: %w", domain.ErrValidation)
	}
	if utf8.RuneCountInString(query) > maxQueryRunes {
		return 0, 0, false, fmt.Errorf("query exceeds %d characters: %w", maxQueryRunes, domain.ErrValidation)
	}

	topK = req.TopK
	if topK == 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK < 1 || topK > s.cfg.MaxTopK {
		return 0, 0, false, fmt.Errorf("top_k must be between 1 and %d: %w", s.cfg.MaxTopK, domain.ErrValidation)
	}

	threshold = s.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return 0, 0, false, fmt.Errorf("threshold must be between 0 and 1: %w", domain.ErrValidation)
	}

	useRerank = s.cfg.RerankEnabled
	if req.EnableRerank != nil {
		useRerank = *req.EnableRerank
	}

	return topK, threshold, useRerank, nil
}

// embedQuery vectorizes the query with retry on transient provider failures.
func (s *Service) embedQuery(ctx context.Context, query string) (domain.EmbeddingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	var embResult domain.EmbeddingResult
	err := retry.Do(ctx, s.cfg.RetryAttempts, s.cfg.RetryBaseDelay, s.logger, "embed query",
		func(ctx context.Context) error {
			var embErr error
			embResult, embErr = s.embed.Embed(ctx, query)
			return embErr
		})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return embResult, nil
}

// finish stamps latency, records metrics, and emits the history record.
func (s *Service) finish(query string, resp Response, start time.Time, rerankEnabled bool) Response {
	took := time.Since(start)
	resp.TookMillis = took.Milliseconds()
	metrics.SearchDuration.Observe(took.Seconds())

	if s.hist != nil {
		chunkIDs := make([]string, len(resp.Results))
		for i := range resp.Results {
			chunkIDs[i] = resp.Results[i].ChunkID()
		}
		s.hist.Emit(history.Record{
			Query:         query,
			Timestamp:     time.Now().UTC(),
			ChunkIDs:      chunkIDs,
			ResultCount:   len(resp.Results),
			LatencyMillis: resp.TookMillis,
			RerankEnabled: rerankEnabled,
		})
	}

	return resp
}
