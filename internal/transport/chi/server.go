// Package chi wires the retrieval usecases to an HTTP API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
	"github.com/kailas-cloud/ragdex/internal/repository/history"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/ragdex/internal/usecase/search"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Ingestor is the document lifecycle contract the server consumes.
type Ingestor interface {
	Ingest(ctx context.Context, req ingestuc.Request) (document.Document, error)
	Get(ctx context.Context, id string) (document.Document, error)
	List(ctx context.Context, offset, limit int) ([]document.Document, int, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) ingestuc.Stats
	Reset(ctx context.Context)
}

// Searcher runs the retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Response, error)
}

// HistoryReader loads recent search history. May be nil.
type HistoryReader interface {
	Recent(ctx context.Context, n int) ([]history.Record, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	ingest        Ingestor
	search        Searcher
	hist          HistoryReader
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. hist may be nil when history is
// disabled.
func NewServer(
	ingest Ingestor,
	search Searcher,
	hist HistoryReader,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest: ingest,
		search: search,
		hist:   hist,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, codeDimensionMismatch),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, codeUpstreamUnavailable),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeUpstreamUnavailable),
	}
	return s
}

// Routes mounts all API endpoints on a fresh router.
func (s *Server) Routes(middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chirouter.NewRouter()
	r.Use(middlewares...)

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chirouter.Router) {
		r.Post("/documents", s.IngestDocument)
		r.Get("/documents", s.ListDocuments)
		r.Get("/documents/{id}", s.GetDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)
		r.Post("/search", s.SearchChunks)
		r.Get("/history", s.GetHistory)
		r.Get("/stats", s.GetStats)
		r.Delete("/index", s.ResetIndex)
	})

	return r
}

// IngestDocument handles POST /api/v1/documents.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, err := s.ingest.Ingest(r.Context(), ingestuc.Request{
		ID:       req.ID,
		Filename: req.Filename,
		Format:   req.Format,
		Content:  []byte(req.Content),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/documents/"+doc.ID())
	writeJSON(w, http.StatusCreated, documentToDTO(&doc, true))
}

// ListDocuments handles GET /api/v1/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	docs, total, err := s.ingest.List(r.Context(), offset, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = documentToDTO(&docs[i], false)
	}

	writeJSON(w, http.StatusOK, documentListResponse{
		Items:  items,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// GetDocument handles GET /api/v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chirouter.URLParam(r, "id")

	doc, err := s.ingest.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToDTO(&doc, true))
}

// DeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chirouter.URLParam(r, "id")

	if err := s.ingest.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SearchChunks handles POST /api/v1/search.
func (s *Server) SearchChunks(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topK := 0
	if req.TopK != nil {
		topK = *req.TopK
	}

	resp, err := s.search.Search(r.Context(), searchuc.Request{
		Query:        req.Query,
		TopK:         topK,
		Threshold:    req.Threshold,
		EnableRerank: req.Rerank,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = searchResultToDTO(&resp.Results[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results:         items,
		Count:           len(items),
		Reranked:        resp.Reranked,
		TookMillis:      resp.TookMillis,
		EmbeddingTokens: resp.TotalTokens,
	})
}

// GetHistory handles GET /api/v1/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeJSON(w, http.StatusOK, historyResponse{Items: []historyItem{}})
		return
	}

	limit := queryInt(r, "limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := s.hist.Recent(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]historyItem, len(records))
	for i, rec := range records {
		items[i] = historyToDTO(rec)
	}

	writeJSON(w, http.StatusOK, historyResponse{Items: items, Count: len(items)})
}

// GetStats handles GET /api/v1/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.ingest.Stats(r.Context())
	writeJSON(w, http.StatusOK, statsResponse{
		Documents:   stats.Documents,
		Chunks:      stats.Chunks,
		Dimension:   stats.Dimension,
		TotalTokens: stats.TotalTokens,
	})
}

// ResetIndex handles DELETE /api/v1/index.
func (s *Server) ResetIndex(w http.ResponseWriter, r *http.Request) {
	s.ingest.Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrDimensionMismatch,
		domain.ErrUpstreamUnavailable,
		domain.ErrEmbeddingProvider,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
