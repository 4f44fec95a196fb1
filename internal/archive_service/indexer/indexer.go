package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"

	"github.com/google/uuid"
)

// Embedder turns batches of text into vectors. Satisfied by the OpenAI
// embedding client; nil when no provider is configured.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer owns the per-document embedding lifecycle: it chunks extracted text,
// calls the embedding provider in batches, and atomically swaps the document's
// chunk set on success. Failures never leave a partial chunk set behind.
type Indexer struct {
	documents store.DocumentStore
	chunks    store.ChunkStore
	embedder  Embedder
	chunker   *Chunker
	batchSize int
	logger    *logger.Logger
}

// NewIndexer creates an Indexer. A nil embedder means the embedding provider
// is not configured; documents are then marked disabled instead of failing.
func NewIndexer(documents store.DocumentStore, chunks store.ChunkStore, embedder Embedder, chunker *Chunker, batchSize int, log *logger.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Indexer{
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		chunker:   chunker,
		batchSize: batchSize,
		logger:    log,
	}
}

// EmbedInput is the text actually sent to the embedding provider for one
// chunk: a small header with the filename and tags followed by the chunk
// body, so vectors carry document-level context.
func EmbedInput(doc *models.Document, chunkText string) string {
	var b strings.Builder
	b.WriteString("File: ")
	b.WriteString(doc.Filename)
	b.WriteString("\n")
	if len(doc.Tags) > 0 {
		b.WriteString("Tags: ")
		b.WriteString(strings.Join(doc.Tags, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(chunkText))
	return b.String()
}

// Index runs the full embedding pass for one document and records the outcome
// on the document record. It returns the provider error, if any, so callers
// driving many documents (reindex) can collect per-document failures.
func (ix *Indexer) Index(ctx context.Context, doc *models.Document) error {
	log := ix.logger

	if ix.embedder == nil {
		log.WithPayload(map[string]interface{}{"document_id": doc.ID}).Info("Embedding provider not configured, marking document disabled")
		return ix.documents.SetEmbeddingState(ctx, doc.ID, models.EmbeddingStatusDisabled, 0, "AI service is not configured")
	}
	if !doc.HasText() {
		return ix.documents.SetEmbeddingState(ctx, doc.ID, models.EmbeddingStatusSkipped, 0, "no text content to embed")
	}

	if err := ix.documents.SetEmbeddingState(ctx, doc.ID, models.EmbeddingStatusProcessing, doc.EmbeddingCount, ""); err != nil {
		return err
	}

	windows := ix.chunker.Split(doc.ContentText)
	if len(windows) == 0 {
		return ix.documents.SetEmbeddingState(ctx, doc.ID, models.EmbeddingStatusSkipped, 0, "no text content to embed")
	}

	chunks, err := ix.embedAll(ctx, doc, windows)
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"document_id": doc.ID,
			"chunks":      len(windows),
		}).Error("Embedding pass failed")
		// The previous chunk set, if any, is still intact; only the status
		// and the verbatim provider message change.
		if stateErr := ix.documents.SetEmbeddingState(ctx, doc.ID, models.EmbeddingStatusFailed, doc.EmbeddingCount, err.Error()); stateErr != nil {
			return stateErr
		}
		return err
	}

	if err := ix.chunks.ReplaceForDocument(ctx, doc.ID, chunks); err != nil {
		if stateErr := ix.documents.SetEmbeddingState(ctx, doc.ID, models.EmbeddingStatusFailed, doc.EmbeddingCount, err.Error()); stateErr != nil {
			return stateErr
		}
		return err
	}
	if err := ix.documents.SetEmbeddingState(ctx, doc.ID, models.EmbeddingStatusCompleted, len(chunks), ""); err != nil {
		return err
	}

	log.WithPayload(map[string]interface{}{
		"document_id": doc.ID,
		"chunks":      len(chunks),
	}).Info("Document embedded")
	return nil
}

// embedAll computes vectors for every window before anything is persisted, so
// a mid-batch provider failure cannot leave a half-replaced chunk set.
func (ix *Indexer) embedAll(ctx context.Context, doc *models.Document, windows []string) ([]models.Chunk, error) {
	now := time.Now().UTC()
	chunks := make([]models.Chunk, 0, len(windows))
	for start := 0; start < len(windows); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(windows) {
			end = len(windows)
		}
		batch := windows[start:end]
		inputs := make([]string, len(batch))
		for i, w := range batch {
			inputs[i] = EmbedInput(doc, w)
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, inputs)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(vectors), len(batch))
		}
		for i, w := range batch {
			chunks = append(chunks, models.Chunk{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Position:   start + i,
				Text:       w,
				Embedding:  vectors[i],
				CreatedAt:  now,
			})
		}
	}
	return chunks, nil
}
