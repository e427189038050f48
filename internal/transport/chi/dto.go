package chi

import (
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain/document"
	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
	"github.com/kailas-cloud/ragdex/internal/repository/history"
)

// Error codes returned in the error response body.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeNotFound            = "not_found"
	codeDimensionMismatch   = "dimension_mismatch"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ingestRequest struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Format   string `json:"format,omitempty"`
	Content  string `json:"content"`
}

type documentResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename,omitempty"`
	Format     string    `json:"format"`
	CreatedAt  time.Time `json:"created_at"`
	ChunkCount int       `json:"chunk_count"`
	Tokens     int       `json:"tokens"`
	ChunkIDs   []string  `json:"chunk_ids,omitempty"`
}

type documentListResponse struct {
	Items  []documentResponse `json:"items"`
	Total  int                `json:"total"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
}

type searchRequest struct {
	Query     string   `json:"query"`
	TopK      *int     `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Rerank    *bool    `json:"rerank,omitempty"`
}

type searchResultItem struct {
	ChunkID     string   `json:"chunk_id"`
	DocumentID  string   `json:"document_id"`
	Text        string   `json:"text"`
	Similarity  float64  `json:"similarity"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
	Score       float64  `json:"score"`
	Rank        int      `json:"rank"`
}

type searchResponse struct {
	Results         []searchResultItem `json:"results"`
	Count           int                `json:"count"`
	Reranked        bool               `json:"reranked"`
	TookMillis      int64              `json:"took_ms"`
	EmbeddingTokens int                `json:"embedding_tokens,omitempty"`
}

type statsResponse struct {
	Documents   int `json:"documents"`
	Chunks      int `json:"chunks"`
	Dimension   int `json:"dimension"`
	TotalTokens int `json:"total_tokens"`
}

type historyItem struct {
	Query         string    `json:"query"`
	Timestamp     time.Time `json:"timestamp"`
	ChunkIDs      []string  `json:"chunk_ids,omitempty"`
	ResultCount   int       `json:"result_count"`
	LatencyMillis int64     `json:"latency_ms"`
	RerankEnabled bool      `json:"rerank_enabled"`
}

type historyResponse struct {
	Items []historyItem `json:"items"`
	Count int           `json:"count"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func documentToDTO(doc *document.Document, includeChunks bool) documentResponse {
	resp := documentResponse{
		ID:         doc.ID(),
		Filename:   doc.Filename(),
		Format:     doc.Format(),
		CreatedAt:  doc.CreatedAt(),
		ChunkCount: doc.ChunkCount(),
		Tokens:     doc.Tokens(),
	}
	if includeChunks {
		resp.ChunkIDs = doc.ChunkIDs()
	}
	return resp
}

func searchResultToDTO(r *result.Result) searchResultItem {
	item := searchResultItem{
		ChunkID:    r.ChunkID(),
		DocumentID: r.DocumentID(),
		Text:       r.Text(),
		Similarity: r.Similarity(),
		Score:      r.Score(),
		Rank:       r.Rank(),
	}
	if r.Reranked() {
		rs := r.RerankScore()
		item.RerankScore = &rs
	}
	return item
}

func historyToDTO(rec history.Record) historyItem {
	return historyItem{
		Query:         rec.Query,
		Timestamp:     rec.Timestamp,
		ChunkIDs:      rec.ChunkIDs,
		ResultCount:   rec.ResultCount,
		LatencyMillis: rec.LatencyMillis,
		RerankEnabled: rec.RerankEnabled,
	}
}
