package result

// Result is a single search hit. Ephemeral, produced per query.
type Result struct {
	chunkID    string
	documentID string
	text       string
	similarity float64
	reranked   bool
	rerank     float64
	combined   float64
	rank       int
}

// New creates a search result scored by cosine similarity only.
func New(chunkID, documentID, text string, similarity float64) Result {
	return Result{
		chunkID:    chunkID,
		documentID: documentID,
		text:       text,
		similarity: similarity,
		combined:   similarity,
	}
}

// ChunkID returns the chunk identifier.
func (r *Result) ChunkID() string { return r.chunkID }

// DocumentID returns the owning document identifier.
func (r *Result) DocumentID() string { return r.documentID }

// Text returns the chunk text snippet.
func (r *Result) Text() string { return r.text }

// Similarity returns the cosine similarity score.
func (r *Result) Similarity() float64 { return r.similarity }

// Reranked reports whether a rerank score was applied.
func (r *Result) Reranked() bool { return r.reranked }

// RerankScore returns the rerank relevance score. Zero when not reranked.
func (r *Result) RerankScore() float64 { return r.rerank }

// Score returns the final ordering score: the combined score when reranked,
// otherwise the similarity.
func (r *Result) Score() float64 { return r.combined }

// Rank returns the 1-based final position. Zero until ranks are assigned.
func (r *Result) Rank() int { return r.rank }

// WithRerank returns a copy with the rerank and combined scores filled in.
func (r Result) WithRerank(rerankScore, combinedScore float64) Result {
	r.reranked = true
	r.rerank = rerankScore
	r.combined = combinedScore
	return r
}

// WithRank returns a copy with the final rank assigned.
func (r Result) WithRank(rank int) Result {
	r.rank = rank
	return r
}
