package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/loaders"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrAINotConfigured is returned by operations that need an embedding or
// completion provider when none is set up.
var ErrAINotConfigured = errors.New("AI service is not configured")

// maxContentChars bounds extracted text per document so one giant file
// cannot dominate the index or the prompt budget.
const maxContentChars = 50000

// JobPublisher enqueues index jobs. Satisfied by the Kafka job publisher.
type JobPublisher interface {
	Publish(ctx context.Context, job models.IndexJob) error
}

// AffectedStory describes one collection touched by a cascade delete.
type AffectedStory struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RemainingFiles int    `json:"remaining_files"`
	BecameInactive bool   `json:"became_inactive"`
}

// DeleteResult is the cascade delete report returned to the caller.
type DeleteResult struct {
	Message           string          `json:"message"`
	EmbeddingsRemoved int64           `json:"embeddings_removed"`
	AffectedStories   []AffectedStory `json:"affected_stories"`
}

// EmbeddingStatusReport is the archive-wide indexing overview.
type EmbeddingStatusReport struct {
	Status              string `json:"status"`
	Message             string `json:"message,omitempty"`
	Model               string `json:"model,omitempty"`
	TotalFiles          int64  `json:"total_files"`
	FilesWithContent    int64  `json:"files_with_content"`
	FilesWithEmbeddings int64  `json:"files_with_embeddings"`
	TotalEmbeddings     int64  `json:"total_embeddings"`
	RagReady            bool   `json:"rag_ready"`
}

// DocumentStatus is one entry of a batch status poll.
type DocumentStatus struct {
	ID              string                 `json:"id"`
	Filename        string                 `json:"filename"`
	FileType        string                 `json:"file_type"`
	EmbeddingStatus models.EmbeddingStatus `json:"embedding_status"`
	EmbeddingCount  int                    `json:"embedding_count"`
	EmbeddingError  string                 `json:"embedding_error,omitempty"`
	HasText         bool                   `json:"has_text"`
}

// DocumentService owns the document lifecycle: upload with text extraction,
// status reporting, tag and visibility changes, and the delete cascade that
// keeps chunks and collection references consistent.
type DocumentService struct {
	documents store.DocumentStore
	chunks    store.ChunkStore
	stories   store.StoryStore
	artifacts store.ArtifactStore
	publisher JobPublisher
	// embeddingModel is reported in status payloads; empty means no
	// embedding provider is configured.
	embeddingModel string
	logger         *logger.Logger
}

// NewDocumentService wires the document service.
func NewDocumentService(documents store.DocumentStore, chunks store.ChunkStore, stories store.StoryStore, artifacts store.ArtifactStore, publisher JobPublisher, embeddingModel string, log *logger.Logger) *DocumentService {
	return &DocumentService{
		documents:      documents,
		chunks:         chunks,
		stories:        stories,
		artifacts:      artifacts,
		publisher:      publisher,
		embeddingModel: embeddingModel,
		logger:         log,
	}
}

func (s *DocumentService) semanticEnabled() bool { return s.embeddingModel != "" }

// Upload stores the raw bytes, extracts whatever text the format yields,
// persists the document as pending and enqueues the index job. The response
// does not wait for embedding.
func (s *DocumentService) Upload(ctx context.Context, userID, filename string, data []byte, manualTags []string) (*models.Document, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload")
	}

	id := uuid.NewString()
	kind := loaders.Detect(filename, data)
	objectName := fmt.Sprintf("uploads/%s%s", id, strings.ToLower(filepath.Ext(filename)))

	contentType := mimetype.Detect(data).String()
	if err := s.artifacts.Put(ctx, objectName, contentType, data); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	doc := &models.Document{
		ID:              id,
		UserID:          userID,
		Filename:        filename,
		FileType:        kind,
		StoredObject:    objectName,
		ContentText:     s.extractText(kind, filename, data),
		Tags:            normalizeTags(manualTags),
		UploadedAt:      time.Now().UTC(),
		EmbeddingStatus: models.EmbeddingStatusPending,
	}
	if err := s.documents.Insert(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, models.IndexJob{
		DocumentID: doc.ID,
		UserID:     userID,
		Reason:     "upload",
	}); err != nil {
		// The document is safe; a reindex or retry will pick it up.
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"document_id": doc.ID,
		}).Error("Failed to enqueue index job for upload")
	}
	return doc, nil
}

// extractText runs the format's extractor. Extraction trouble is never a
// fatal upload error: the document is stored anyway and ends up skipped.
func (s *DocumentService) extractText(kind, filename string, data []byte) string {
	extractor := loaders.ForKind(kind)
	if extractor == nil {
		return ""
	}
	text, err := extractor.Extract(data)
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"filename": filename,
			"kind":     kind,
		}).Warn("Text extraction failed")
		return ""
	}
	runes := []rune(text)
	if len(runes) > maxContentChars {
		return string(runes[:maxContentChars])
	}
	return text
}

// Get returns one visible document.
func (s *DocumentService) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	return s.documents.GetVisible(ctx, id, userID)
}

// Download returns a visible document's metadata plus its raw bytes.
func (s *DocumentService) Download(ctx context.Context, userID, id string) (*models.Document, []byte, error) {
	doc, err := s.documents.GetVisible(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.artifacts.Get(ctx, doc.StoredObject)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// UpdateTags replaces a document's tags. Tags feed the weighted text index,
// so this directly changes lexical ranking.
func (s *DocumentService) UpdateTags(ctx context.Context, userID, id string, tags []string) (*models.Document, error) {
	if err := s.documents.UpdateTags(ctx, id, userID, normalizeTags(tags)); err != nil {
		return nil, err
	}
	return s.documents.GetVisible(ctx, id, userID)
}

// SetVisibility flips a document between private and public. Owner only.
func (s *DocumentService) SetVisibility(ctx context.Context, userID, id string, public bool) (*models.Document, error) {
	if err := s.documents.SetVisibility(ctx, id, userID, public); err != nil {
		return nil, err
	}
	return s.documents.GetVisible(ctx, id, userID)
}

// RetryEmbedding requeues one document whose embedding failed or was
// skipped.
func (s *DocumentService) RetryEmbedding(ctx context.Context, userID, id string) (*models.Document, error) {
	doc, err := s.documents.GetVisible(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !s.semanticEnabled() {
		return nil, ErrAINotConfigured
	}
	if err := s.documents.SetEmbeddingState(ctx, doc.ID, models.EmbeddingStatusPending, doc.EmbeddingCount, ""); err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, models.IndexJob{
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		Reason:     "retry",
	}); err != nil {
		return nil, err
	}
	doc.EmbeddingStatus = models.EmbeddingStatusPending
	return doc, nil
}

// Delete removes a document and everything hanging off it: its chunk set,
// its reference in every collection, and the stored object. Collections left
// empty flip to inactive; the report names each one touched. Steps are
// ordered and idempotent so a partial failure can be re-run.
func (s *DocumentService) Delete(ctx context.Context, userID, id string) (*DeleteResult, error) {
	doc, err := s.documents.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	removed, err := s.chunks.DeleteForDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete chunks: %w", err)
	}

	referencing, err := s.stories.ReferencingDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	affected := make([]AffectedStory, len(referencing))
	g, gctx := errgroup.WithContext(ctx)
	for i, story := range referencing {
		i, story := i, story
		g.Go(func() error {
			remaining, becameInactive, err := s.stories.RemoveDocumentRef(gctx, story.ID, doc.ID)
			if err != nil {
				return fmt.Errorf("failed to detach document from collection %s: %w", story.ID, err)
			}
			affected[i] = AffectedStory{
				ID:             story.ID,
				Name:           story.Name,
				RemainingFiles: remaining,
				BecameInactive: becameInactive,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.artifacts.Delete(ctx, doc.StoredObject); err != nil {
		// The metadata delete below still proceeds; an orphaned object is
		// harmless and cheap, a dangling document record is not.
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"object": doc.StoredObject,
		}).Warn("Failed to delete stored object")
	}

	if err := s.documents.Delete(ctx, doc.ID); err != nil {
		return nil, err
	}
	return &DeleteResult{
		Message:           "File deleted",
		EmbeddingsRemoved: removed,
		AffectedStories:   affected,
	}, nil
}

// EmbeddingStatus reports the archive-wide indexing state for the user's
// visible corpus.
func (s *DocumentService) EmbeddingStatus(ctx context.Context, userID string) (*EmbeddingStatusReport, error) {
	if !s.semanticEnabled() {
		return &EmbeddingStatusReport{
			Status:  "disabled",
			Message: "AI embedding service not configured",
		}, nil
	}

	total, err := s.documents.CountVisible(ctx, userID)
	if err != nil {
		return nil, err
	}
	withContent, err := s.documents.CountVisibleWithText(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids, err := s.documents.VisibleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	var totalEmbeddings, withEmbeddings int64
	if len(ids) > 0 {
		if totalEmbeddings, err = s.chunks.CountForDocuments(ctx, ids); err != nil {
			return nil, err
		}
		if withEmbeddings, err = s.chunks.CountDocumentsWithChunks(ctx, ids); err != nil {
			return nil, err
		}
	}
	return &EmbeddingStatusReport{
		Status:              "enabled",
		Model:               s.embeddingModel,
		TotalFiles:          total,
		FilesWithContent:    withContent,
		FilesWithEmbeddings: withEmbeddings,
		TotalEmbeddings:     totalEmbeddings,
		RagReady:            withEmbeddings > 0,
	}, nil
}

// BatchStatus returns the indexing state of the requested documents, for the
// UI's upload polling. Unknown or invisible ids are silently absent.
func (s *DocumentService) BatchStatus(ctx context.Context, userID string, ids []string) ([]DocumentStatus, error) {
	docs, err := s.documents.BatchStatus(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	statuses := make([]DocumentStatus, 0, len(docs))
	for _, d := range docs {
		statuses = append(statuses, DocumentStatus{
			ID:              d.ID,
			Filename:        d.Filename,
			FileType:        d.FileType,
			EmbeddingStatus: d.EmbeddingStatus,
			EmbeddingCount:  d.EmbeddingCount,
			EmbeddingError:  d.EmbeddingError,
			HasText:         d.ContentText != "",
		})
	}
	return statuses, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
