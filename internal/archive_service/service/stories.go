package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/llm"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"

	"github.com/google/uuid"
)

// StoryService owns collections: document membership, chapters and their
// content blocks, and the chat transcript. Block writes go through the
// store's atomic operations so two concurrent appends can never overwrite
// each other.
type StoryService struct {
	stories   store.StoryStore
	documents store.DocumentStore
	logger    *logger.Logger
}

// NewStoryService wires the story service.
func NewStoryService(stories store.StoryStore, documents store.DocumentStore, log *logger.Logger) *StoryService {
	return &StoryService{stories: stories, documents: documents, logger: log}
}

// Create builds a new collection over a validated document set. Requested
// documents the user cannot see are silently dropped. A non-empty summary is
// seeded as the first assistant message.
func (s *StoryService) Create(ctx context.Context, userID, name, description string, documentIDs []string, summary string) (*models.Story, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	validIDs, err := s.visibleSubset(ctx, userID, documentIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	story := &models.Story{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		DocumentIDs: validIDs,
		Status:      models.StoryStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.stories.Insert(ctx, story); err != nil {
		return nil, err
	}

	if summary != "" {
		msg := &models.StoryMessage{
			ID:        uuid.NewString(),
			StoryID:   story.ID,
			Role:      llm.RoleAssistant,
			Content:   summary,
			CreatedAt: now,
		}
		if err := s.stories.AppendMessage(ctx, msg); err != nil {
			s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to seed collection summary message")
		}
	}
	return story, nil
}

// List returns the user's collections.
func (s *StoryService) List(ctx context.Context, userID string) ([]*models.Story, error) {
	return s.stories.List(ctx, userID)
}

// Get returns one collection.
func (s *StoryService) Get(ctx context.Context, userID, storyID string) (*models.Story, error) {
	return s.stories.GetByID(ctx, storyID, userID)
}

// Delete removes a collection with its chapters and messages. Source
// documents are untouched.
func (s *StoryService) Delete(ctx context.Context, userID, storyID string) error {
	return s.stories.Delete(ctx, storyID, userID)
}

// Messages returns the collection's chat transcript in order.
func (s *StoryService) Messages(ctx context.Context, userID, storyID string) ([]*models.StoryMessage, error) {
	if _, err := s.stories.GetByID(ctx, storyID, userID); err != nil {
		return nil, err
	}
	return s.stories.ListMessages(ctx, storyID)
}

// AppendDocuments adds visible documents to an existing collection,
// deduplicated, and returns the refreshed record.
func (s *StoryService) AppendDocuments(ctx context.Context, userID, storyID string, documentIDs []string) (*models.Story, error) {
	if _, err := s.stories.GetByID(ctx, storyID, userID); err != nil {
		return nil, err
	}
	validIDs, err := s.visibleSubset(ctx, userID, documentIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range validIDs {
		if err := s.stories.AddDocumentRef(ctx, storyID, userID, id); err != nil {
			return nil, err
		}
	}
	return s.stories.GetByID(ctx, storyID, userID)
}

// CreateChapter adds an empty chapter to a collection.
func (s *StoryService) CreateChapter(ctx context.Context, userID, storyID, name string, number int) (*models.Chapter, error) {
	if _, err := s.stories.GetByID(ctx, storyID, userID); err != nil {
		return nil, err
	}
	chapter := &models.Chapter{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		Number:    number,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.stories.InsertChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// Chapters lists a collection's chapters in order.
func (s *StoryService) Chapters(ctx context.Context, userID, storyID string) ([]*models.Chapter, error) {
	if _, err := s.stories.GetByID(ctx, storyID, userID); err != nil {
		return nil, err
	}
	return s.stories.ListChapters(ctx, storyID)
}

// AppendBlock validates and appends one content block to a chapter. The
// append is a single storage-level push: it never reads the existing block
// array into the process, so concurrent appends both land.
func (s *StoryService) AppendBlock(ctx context.Context, userID, storyID, chapterID string, block models.ContentBlock) (*models.ContentBlock, error) {
	if _, err := s.stories.GetByID(ctx, storyID, userID); err != nil {
		return nil, err
	}
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}
	if err := models.ValidateBlock(block); err != nil {
		return nil, err
	}
	if err := s.stories.AppendBlock(ctx, storyID, chapterID, block); err != nil {
		return nil, err
	}
	return &block, nil
}

// UpdateTextBlock rewrites the content of one text block, addressed by its
// id. If the block was removed or replaced since the caller last read the
// chapter, the edit fails with ErrStaleBlock instead of touching whatever
// now sits at that position.
func (s *StoryService) UpdateTextBlock(ctx context.Context, userID, storyID, chapterID, blockID, content string) error {
	if _, err := s.stories.GetByID(ctx, storyID, userID); err != nil {
		return err
	}
	if content == "" {
		return fmt.Errorf("text block requires non-empty content")
	}
	return s.stories.UpdateTextBlock(ctx, chapterID, blockID, content)
}

// RemoveBlock deletes one content block by id, with the same fail-closed
// behavior as UpdateTextBlock.
func (s *StoryService) RemoveBlock(ctx context.Context, userID, storyID, chapterID, blockID string) error {
	if _, err := s.stories.GetByID(ctx, storyID, userID); err != nil {
		return err
	}
	return s.stories.RemoveBlock(ctx, chapterID, blockID)
}

// visibleSubset filters the requested ids down to documents the user may
// actually see.
func (s *StoryService) visibleSubset(ctx context.Context, userID string, documentIDs []string) ([]string, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	docs, err := s.documents.BatchStatus(ctx, userID, documentIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
