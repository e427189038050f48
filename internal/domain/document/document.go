package document

import (
	"fmt"
	"regexp"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentSize is the maximum extracted text size accepted for ingestion, in bytes.
const MaxContentSize = 1 << 20 // 1MB

// Document is the ingestion aggregate (immutable value object).
// It records the chunk linkage needed for deletion and listing; the chunk
// texts themselves live in the vector index entries.
type Document struct {
	id        string
	filename  string
	format    string
	createdAt time.Time
	chunkIDs  []string
	tokens    int
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars.
func New(id, filename, format string, createdAt time.Time, chunkIDs []string, tokens int) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
	}
	if format == "" {
		return Document{}, fmt.Errorf("format is required")
	}
	return Document{
		id:        id,
		filename:  filename,
		format:    format,
		createdAt: createdAt,
		chunkIDs:  cloneStrings(chunkIDs),
		tokens:    tokens,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, filename, format string, createdAt time.Time, chunkIDs []string, tokens int) Document {
	return Document{id: id, filename: filename, format: format, createdAt: createdAt, chunkIDs: chunkIDs, tokens: tokens}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Filename returns the source filename.
func (d *Document) Filename() string { return d.filename }

// Format returns the source format tag.
func (d *Document) Format() string { return d.format }

// CreatedAt returns the ingestion timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// ChunkIDs returns the ordered chunk identifiers.
func (d *Document) ChunkIDs() []string { return d.chunkIDs }

// ChunkCount returns the number of chunks produced at ingestion.
func (d *Document) ChunkCount() int { return len(d.chunkIDs) }

// Tokens returns the total token estimate for the document text.
func (d *Document) Tokens() int { return d.tokens }

// Chunk is a bounded span of a document's text, the unit of embedding and
// retrieval. Immutable once created; re-ingestion replaces, never mutates.
type Chunk struct {
	id      string
	docID   string
	text    string
	ordinal int
	tokens  int
	start   int
	end     int
}

// ChunkID builds the canonical chunk identifier for a document ordinal.
func ChunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, ordinal)
}

// NewChunk creates a Chunk. Start and end are rune offsets into the source text.
func NewChunk(docID, text string, ordinal, tokens, start, end int) Chunk {
	return Chunk{
		id:      ChunkID(docID, ordinal),
		docID:   docID,
		text:    text,
		ordinal: ordinal,
		tokens:  tokens,
		start:   start,
		end:     end,
	}
}

// ID returns the chunk identifier, unique within the index.
func (c *Chunk) ID() string { return c.id }

// DocumentID returns the owning document identifier.
func (c *Chunk) DocumentID() string { return c.docID }

// Text returns the chunk text.
func (c *Chunk) Text() string { return c.text }

// Ordinal returns the chunk position within the document.
func (c *Chunk) Ordinal() int { return c.ordinal }

// Tokens returns the chunk token estimate.
func (c *Chunk) Tokens() int { return c.tokens }

// Start returns the start rune offset into the source text.
func (c *Chunk) Start() int { return c.start }

// End returns the end rune offset into the source text.
func (c *Chunk) End() int { return c.end }

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
