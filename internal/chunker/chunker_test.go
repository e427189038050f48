package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func TestSplit_CoversWholeText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 37) // 370 runes, not a multiple of the step
	spans, err := Split(text, 100, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spans) < 2 {
		t.Fatalf("expected multiple spans, got %d", len(spans))
	}

	// Consecutive spans overlap by exactly the configured amount,
	// and together they cover the source with no gaps.
	if spans[0].Start != 0 {
		t.Errorf("first span starts at %d, want 0", spans[0].Start)
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start != spans[i-1].End-20 {
			t.Errorf("span %d starts at %d, want %d", i, spans[i].Start, spans[i-1].End-20)
		}
	}
	last := spans[len(spans)-1]
	if last.End != len([]rune(text)) {
		t.Errorf("last span ends at %d, want %d (trailing text dropped)", last.End, len([]rune(text)))
	}

	// Span text matches its offsets.
	runes := []rune(text)
	for i, s := range spans {
		if s.Text != string(runes[s.Start:s.End]) {
			t.Errorf("span %d text does not match its offsets", i)
		}
	}
}

func TestSplit_ShortTextSingleSpan(t *testing.T) {
	spans, err := Split("short text", 100, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Text != "short text" {
		t.Errorf("span text = %q", spans[0].Text)
	}
}

func TestSplit_ThousandCharDocument(t *testing.T) {
	// 1000 chars with window 500 / overlap 50 must yield multiple chunks
	// where each consecutive pair shares the overlapping text.
	text := strings.Repeat("x", 1000)
	spans, err := Split(text, 500, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spans) < 2 {
		t.Fatalf("expected multiple overlapping spans, got %d", len(spans))
	}
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if cur.Start >= prev.End {
			t.Errorf("spans %d and %d do not overlap", i-1, i)
		}
		tail := prev.Text[len(prev.Text)-50:]
		head := cur.Text[:50]
		if tail != head {
			t.Errorf("spans %d and %d do not share overlap text", i-1, i)
		}
	}
	if spans[0].Tokens != 125 {
		t.Errorf("500-rune span token estimate = %d, want 125", spans[0].Tokens)
	}
}

func TestSplit_InvalidConfig(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split("some text", tc.size, tc.overlap)
			if !errors.Is(err, domain.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   \n\t  "} {
		spans, err := Split(text, 100, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(spans) != 0 {
			t.Errorf("expected no spans for %q, got %d", text, len(spans))
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 60)
	a, _ := Split(text, 120, 30)
	b, _ := Split(text, 120, 30)
	if len(a) != len(b) {
		t.Fatalf("span counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("span %d differs between runs", i)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 1000), 250},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d runes) = %d, want %d", len([]rune(tc.text)), got, tc.want)
		}
	}
}
