// Package ingest implements the document ingestion pipeline: extract text,
// chunk it, embed every chunk, and commit the document to the index and the
// registry as one unit. A document is either fully indexed or absent; no
// partial state survives a failure.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/document"
	"github.com/kailas-cloud/ragdex/internal/index"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/retry"
)

// Request is one document upload.
type Request struct {
	// ID is optional; empty generates a UUID.
	ID       string
	Filename string
	// Format tags the content type (txt, md). Empty means plain text.
	Format  string
	Content []byte
}

// Stats is the aggregate index view.
type Stats struct {
	Documents   int
	Chunks      int
	Dimension   int
	TotalTokens int
}

// Config holds ingestion settings.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	RetryAttempts  int
	RetryBaseDelay time.Duration
	EmbedTimeout   time.Duration
}

// Service runs the ingestion pipeline.
type Service struct {
	embed     Embedder
	idx       Index
	extractor Extractor
	docs      *registry
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an ingestion service.
func New(embed Embedder, idx Index, extractor Extractor, cfg Config, logger *zap.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
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
		embed:     embed,
		idx:       idx,
		extractor: extractor,
		docs:      newRegistry(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest processes one document end to end. Re-ingesting an existing ID
// replaces the document wholesale. Nothing is committed until every chunk has
// been embedded and validated.
func (s *Service) Ingest(ctx context.Context, req Request) (document.Document, error) {
	if len(req.Content) == 0 {
		return document.Document{}, fmt.Errorf("content is required: %w", domain.ErrValidation)
	}
	if len(req.Content) > document.MaxContentSize {
		return document.Document{}, fmt.Errorf(
			"content exceeds %d bytes: %w", document.MaxContentSize, domain.ErrValidation)
	}

	docID := req.ID
	if docID == "" {
		docID = uuid.NewString()
	}
	// Validate the ID before any provider call.
	if _, err := document.New(docID, req.Filename, formatOrDefault(req.Format), s.now(), nil, 0); err != nil {
		return document.Document{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	text, err := s.extractor.Extract(req.Content, req.Format)
	if err != nil {
		return document.Document{}, fmt.Errorf("extract text: %w", err)
	}

	spans, err := chunker.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return document.Document{}, fmt.Errorf("chunk text: %w", err)
	}
	if len(spans) == 0 {
		return document.Document{}, fmt.Errorf("no indexable content: %w", domain.ErrValidation)
	}

	// Embed everything up front. No index mutation happens until every
	// vector is in hand and checked against the index dimension.
	vectors, tokens, err := s.embedSpans(ctx, spans)
	if err != nil {
		return document.Document{}, err
	}
	if err := s.checkDimensions(vectors); err != nil {
		return document.Document{}, err
	}

	chunks := make([]document.Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = document.NewChunk(docID, sp.Text, i, sp.Tokens, sp.Start, sp.End)
	}

	return s.commit(docID, req, chunks, vectors, tokens)
}

// commit replaces any previous version of the document and installs the new
// chunks. Vectors are pre-validated, so upserts only fail on programmer
// error; if one does, the partial document is rolled back.
func (s *Service) commit(
	docID string, req Request, chunks []document.Chunk, vectors [][]float32, tokens int,
) (document.Document, error) {
	if _, existed := s.docs.get(docID); existed {
		s.idx.RemoveByDocument(docID)
		s.logger.Info("Replacing existing document", zap.String("document_id", docID))
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		meta := index.Meta{
			DocumentID: docID,
			Text:       c.Text(),
			Ordinal:    c.Ordinal(),
			Tokens:     c.Tokens(),
		}
		if err := s.idx.Upsert(c.ID(), vectors[i], meta); err != nil {
			s.idx.RemoveByDocument(docID)
			s.docs.delete(docID)
			metrics.IndexEntries.Set(float64(s.idx.Len()))
			return document.Document{}, fmt.Errorf("index chunk %s: %w", c.ID(), err)
		}
		chunkIDs[i] = c.ID()
	}

	doc, err := document.New(docID, req.Filename, formatOrDefault(req.Format), s.now().UTC(), chunkIDs, tokens)
	if err != nil {
		s.idx.RemoveByDocument(docID)
		return document.Document{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	s.docs.put(doc)
	metrics.IndexEntries.Set(float64(s.idx.Len()))

	s.logger.Info("Document ingested",
		zap.String("document_id", docID),
		zap.Int("chunks", len(chunkIDs)),
		zap.Int("tokens", tokens))

	return doc, nil
}

// embedSpans vectorizes all chunk texts with retry on transient failures.
func (s *Service) embedSpans(ctx context.Context, spans []chunker.Span) ([][]float32, int, error) {
	texts := make([]string, len(spans))
	tokens := 0
	for i, sp := range spans {
		texts[i] = sp.Text
		tokens += sp.Tokens
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	var batch domain.BatchEmbeddingResult
	err := retry.Do(ctx, s.cfg.RetryAttempts, s.cfg.RetryBaseDelay, s.logger, "embed chunks",
		func(ctx context.Context) error {
			var embErr error
			batch, embErr = s.embed.BatchEmbed(ctx, texts)
			return embErr
		})
	if err != nil {
		return nil, 0, err
	}
	if len(batch.Embeddings) != len(texts) {
		return nil, 0, fmt.Errorf(
			"got %d embeddings for %d chunks: %w", len(batch.Embeddings), len(texts), domain.ErrEmbeddingProvider)
	}
	return batch.Embeddings, tokens, nil
}

// checkDimensions verifies every vector agrees with the established index
// dimension, and with each other when the index is still empty.
func (s *Service) checkDimensions(vectors [][]float32) error {
	dim := s.idx.Dimension()
	if dim == 0 && len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf(
				"chunk %d has %d dimensions, expected %d: %w", i, len(v), dim, domain.ErrDimensionMismatch)
		}
	}
	return nil
}

// Get returns a document by ID.
func (s *Service) Get(_ context.Context, id string) (document.Document, error) {
	doc, ok := s.docs.get(id)
	if !ok {
		return document.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

// List returns documents newest first, with the total count before paging.
func (s *Service) List(_ context.Context, offset, limit int) ([]document.Document, int, error) {
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("offset and limit must be non-negative: %w", domain.ErrValidation)
	}
	docs, total := s.docs.list(offset, limit)
	return docs, total, nil
}

// Delete removes a document and all its index entries.
func (s *Service) Delete(_ context.Context, id string) error {
	if _, ok := s.docs.get(id); !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	removed := s.idx.RemoveByDocument(id)
	s.docs.delete(id)
	metrics.IndexEntries.Set(float64(s.idx.Len()))

	s.logger.Info("Document deleted",
		zap.String("document_id", id),
		zap.Int("chunks_removed", removed))
	return nil
}

// Stats returns the aggregate index view.
func (s *Service) Stats(_ context.Context) Stats {
	return Stats{
		Documents:   s.docs.count(),
		Chunks:      s.idx.Len(),
		Dimension:   s.idx.Dimension(),
		TotalTokens: s.docs.totalTokens(),
	}
}

// Rehydrate rebuilds the document registry from the current index contents
// and returns the number of documents recovered. Used after a snapshot
// restore, where chunk metadata survives but document records do not:
// filenames are lost and creation times reset to the restore time.
func (s *Service) Rehydrate(_ context.Context) int {
	byDoc := make(map[string][]index.Entry)
	for _, e := range s.idx.Entries() {
		byDoc[e.Meta.DocumentID] = append(byDoc[e.Meta.DocumentID], e)
	}

	now := s.now().UTC()
	for docID, entries := range byDoc {
		sort.Slice(entries, func(a, b int) bool {
			return entries[a].Meta.Ordinal < entries[b].Meta.Ordinal
		})
		chunkIDs := make([]string, len(entries))
		tokens := 0
		for i, e := range entries {
			chunkIDs[i] = e.ChunkID
			tokens += e.Meta.Tokens
		}
		s.docs.put(document.Reconstruct(docID, "", formatOrDefault(""), now, chunkIDs, tokens))
	}
	return len(byDoc)
}

// Reset clears the index and the registry.
func (s *Service) Reset(_ context.Context) {
	s.idx.Reset()
	s.docs.reset()
	metrics.IndexEntries.Set(0)
	s.logger.Info("Index reset")
}

func formatOrDefault(format string) string {
	if format == "" {
		return "txt"
	}
	return format
}
