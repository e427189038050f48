// Package chunker splits extracted document text into overlapping windows.
//
// Window size and overlap are measured in runes, and the token estimate
// attached to each span uses the fixed approximation of one token per four
// runes. Both formulas are deterministic so chunk boundaries are reproducible
// across re-ingestions without a tokenizer.
package chunker

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// runesPerToken is the documented token approximation: 1 token ≈ 4 runes.
const runesPerToken = 4

// Span is a chunk draft: the window text plus its rune offsets into the
// source text. Start is inclusive, End exclusive.
type Span struct {
	Text   string
	Start  int
	End    int
	Tokens int
}

// EstimateTokens approximates the token count of text as ceil(runes/4).
// Returns 0 for empty text.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + runesPerToken - 1) / runesPerToken
}

// Split walks text producing windows of at most size runes, advancing by
// size-overlap runes each step. The final window may be shorter; trailing
// text is never dropped. Whitespace-only input yields no spans.
func Split(text string, size, overlap int) ([]Span, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrConfig)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d: %w", overlap, domain.ErrConfig)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d: %w",
			overlap, size, domain.ErrConfig)
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	step := size - overlap

	spans := make([]Span, 0, (n+step-1)/step)
	for start := 0; start < n; start += step {
		end := start + size
		if end > n {
			end = n
		}
		window := string(runes[start:end])
		spans = append(spans, Span{
			Text:   window,
			Start:  start,
			End:    end,
			Tokens: EstimateTokens(window),
		})
		if end == n {
			break
		}
	}
	return spans, nil
}
