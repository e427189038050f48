package rerank

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain/search/result"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type mockReranker struct {
	scores    map[string]float64
	err       error
	calls     int
	batchLens []int
}

func (m *mockReranker) Rerank(_ context.Context, _ string, texts []string) ([]float64, error) {
	m.calls++
	m.batchLens = append(m.batchLens, len(texts))
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = m.scores[t]
	}
	return out, nil
}

func candidates(simByText map[string]float64, order ...string) []result.Result {
	out := make([]result.Result, 0, len(order))
	for i, text := range order {
		out = append(out, result.New(
			"doc1_chunk_"+string(rune('0'+i)), "doc1", text, simByText[text],
		))
	}
	return out
}

func TestApply_BlendsAndSorts(t *testing.T) {
	rr := &mockReranker{scores: map[string]float64{
		"low sim, high relevance": 0.9,
		"high sim, low relevance": 0.1,
		"mid sim, mid relevance":  0.5,
	}}
	eng := New(rr, Config{}, zap.NewNop())

	cands := candidates(map[string]float64{
		"high sim, low relevance": 0.95,
		"mid sim, mid relevance":  0.60,
		"low sim, high relevance": 0.30,
	}, "high sim, low relevance", "mid sim, mid relevance", "low sim, high relevance")

	out, applied := eng.Apply(context.Background(), "q", cands)
	if !applied {
		t.Fatal("expected rerank to be applied")
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}

	// combined = 0.3*sim + 0.7*rerank
	// low sim, high relevance: 0.3*0.30 + 0.7*0.9 = 0.72 (winner)
	if out[0].Text() != "low sim, high relevance" {
		t.Errorf("expected rerank winner first, got %q", out[0].Text())
	}
	wantTop := 0.3*0.30 + 0.7*0.9
	if math.Abs(out[0].Score()-wantTop) > 1e-9 {
		t.Errorf("expected top score %f, got %f", wantTop, out[0].Score())
	}
	if !out[0].Reranked() {
		t.Error("expected result marked as reranked")
	}
	if out[0].Similarity() != 0.30 {
		t.Errorf("original similarity must be preserved, got %f", out[0].Similarity())
	}
}

func TestApply_ProviderFailureFallsBack(t *testing.T) {
	rr := &mockReranker{err: errors.New("provider down")}
	eng := New(rr, Config{}, zap.NewNop())

	cands := candidates(map[string]float64{"a": 0.9, "b": 0.5}, "a", "b")

	out, applied := eng.Apply(context.Background(), "q", cands)
	if applied {
		t.Fatal("expected fallback, not applied")
	}
	if len(out) != 2 {
		t.Fatalf("candidates must never be dropped, got %d", len(out))
	}
	// Similarity order preserved
	if out[0].Text() != "a" || out[1].Text() != "b" {
		t.Errorf("expected similarity order preserved, got %q, %q", out[0].Text(), out[1].Text())
	}
	if out[0].Reranked() {
		t.Error("fallback results must not be marked reranked")
	}
}

func TestApply_ScoreCountMismatchFallsBack(t *testing.T) {
	rr := &shortReranker{}
	eng := New(rr, Config{}, zap.NewNop())

	cands := candidates(map[string]float64{"a": 0.9, "b": 0.5}, "a", "b")

	out, applied := eng.Apply(context.Background(), "q", cands)
	if applied {
		t.Fatal("expected fallback on score count mismatch")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
}

type shortReranker struct{}

func (*shortReranker) Rerank(_ context.Context, _ string, texts []string) ([]float64, error) {
	return make([]float64, len(texts)-1), nil
}

func TestApply_Batches(t *testing.T) {
	rr := &mockReranker{scores: map[string]float64{}}
	eng := New(rr, Config{BatchSize: 2}, zap.NewNop())

	cands := candidates(map[string]float64{"a": 0.5, "b": 0.4, "c": 0.3, "d": 0.2, "e": 0.1},
		"a", "b", "c", "d", "e")

	_, applied := eng.Apply(context.Background(), "q", cands)
	if !applied {
		t.Fatal("expected rerank applied")
	}
	if rr.calls != 3 {
		t.Errorf("expected 3 batches for 5 candidates with batch size 2, got %d", rr.calls)
	}
	if rr.batchLens[2] != 1 {
		t.Errorf("expected final batch of 1, got %d", rr.batchLens[2])
	}
}

func TestApply_EqualCombinedScoresKeepInputOrder(t *testing.T) {
	rr := &mockReranker{scores: map[string]float64{"a": 0.5, "b": 0.5}}
	eng := New(rr, Config{}, zap.NewNop())

	cands := candidates(map[string]float64{"a": 0.7, "b": 0.7}, "a", "b")

	out, _ := eng.Apply(context.Background(), "q", cands)
	if out[0].Text() != "a" || out[1].Text() != "b" {
		t.Errorf("expected stable order for equal scores, got %q, %q", out[0].Text(), out[1].Text())
	}
}

func TestApply_NilRerankerPassesThrough(t *testing.T) {
	eng := New(nil, Config{}, zap.NewNop())

	cands := candidates(map[string]float64{"a": 0.9}, "a")

	out, applied := eng.Apply(context.Background(), "q", cands)
	if applied {
		t.Fatal("expected pass-through with nil reranker")
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
}

func TestApply_Empty(t *testing.T) {
	eng := New(&mockReranker{}, Config{}, zap.NewNop())

	out, applied := eng.Apply(context.Background(), "q", nil)
	if applied || out != nil {
		t.Fatalf("expected no-op for empty candidates, got applied=%v out=%v", applied, out)
	}
}

func TestApply_CustomWeights(t *testing.T) {
	rr := &mockReranker{scores: map[string]float64{"a": 1.0}}
	eng := New(rr, Config{SimilarityWeight: 0.5, RerankWeight: 0.5}, zap.NewNop())

	cands := candidates(map[string]float64{"a": 0.0}, "a")

	out, _ := eng.Apply(context.Background(), "q", cands)
	if math.Abs(out[0].Score()-0.5) > 1e-9 {
		t.Errorf("expected combined 0.5 with equal weights, got %f", out[0].Score())
	}
}
