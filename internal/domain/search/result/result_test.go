package result

import "testing"

func TestNew_ScoreDefaultsToSimilarity(t *testing.T) {
	r := New("doc1_chunk_0", "doc1", "text", 0.83)
	if r.Score() != 0.83 {
		t.Errorf("score = %v, want similarity 0.83", r.Score())
	}
	if r.Reranked() {
		t.Error("fresh result must not be reranked")
	}
	if r.Rank() != 0 {
		t.Errorf("rank = %d, want 0 until assigned", r.Rank())
	}
}

func TestWithRerank_DoesNotMutateOriginal(t *testing.T) {
	orig := New("doc1_chunk_0", "doc1", "text", 0.5)
	reranked := orig.WithRerank(0.9, 0.78)

	if !reranked.Reranked() || reranked.RerankScore() != 0.9 || reranked.Score() != 0.78 {
		t.Errorf("unexpected reranked result: %+v", reranked)
	}
	if reranked.Similarity() != 0.5 {
		t.Errorf("similarity = %v, must survive rerank", reranked.Similarity())
	}
	if orig.Reranked() || orig.Score() != 0.5 {
		t.Error("original must be untouched")
	}
}

func TestWithRank(t *testing.T) {
	r := New("doc1_chunk_0", "doc1", "text", 0.5).WithRank(3)
	if r.Rank() != 3 {
		t.Errorf("rank = %d, want 3", r.Rank())
	}
}
