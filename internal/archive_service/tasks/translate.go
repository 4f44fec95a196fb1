package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"

	"github.com/google/uuid"
)

// Translator produces a translation for one block of text. Satisfied by the
// OpenAI completion client.
type Translator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TranslateRunner copies a whole story into a new language as one background
// task. The copy is fully independent of the source: new story, chapter and
// block identities throughout, and no shared chat history. Text blocks are
// translated one by one; media blocks are carried over by reference.
type TranslateRunner struct {
	stories    store.StoryStore
	translator Translator
	orch       *Orchestrator
}

// NewTranslateRunner creates a TranslateRunner. A nil translator makes Start
// fail up front instead of failing the task mid-run.
func NewTranslateRunner(stories store.StoryStore, translator Translator, orch *Orchestrator) *TranslateRunner {
	return &TranslateRunner{stories: stories, translator: translator, orch: orch}
}

// Start creates the task record and returns its id plus the total block
// count. On completion the record's result id is the new story's id.
func (r *TranslateRunner) Start(ctx context.Context, userID, storyID, targetLanguage string) (taskID string, total int, err error) {
	if r.translator == nil {
		return "", 0, fmt.Errorf("translation requires a configured AI service")
	}
	if targetLanguage == "" {
		return "", 0, fmt.Errorf("target language is required")
	}

	source, err := r.stories.GetByID(ctx, storyID, userID)
	if err != nil {
		return "", 0, err
	}
	chapters, err := r.stories.ListChapters(ctx, storyID)
	if err != nil {
		return "", 0, err
	}
	for _, ch := range chapters {
		total += len(ch.ContentBlocks)
	}

	taskID, err = r.orch.Start(ctx, userID, models.TaskKindTranslate, total, func(ctx context.Context, rep *Reporter) (string, error) {
		return r.translate(ctx, rep, source, chapters, targetLanguage)
	})
	if err != nil {
		return "", 0, err
	}
	return taskID, total, nil
}

func (r *TranslateRunner) translate(ctx context.Context, rep *Reporter, source *models.Story, chapters []*models.Chapter, targetLanguage string) (string, error) {
	now := time.Now().UTC()
	target := &models.Story{
		ID:          uuid.NewString(),
		UserID:      source.UserID,
		Name:        fmt.Sprintf("%s (%s)", source.Name, targetLanguage),
		Description: source.Description,
		Language:    targetLanguage,
		DocumentIDs: append([]string(nil), source.DocumentIDs...),
		Status:      models.StoryStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.stories.Insert(ctx, target); err != nil {
		return "", err
	}

	if err := r.translateChapters(ctx, rep, target, chapters, targetLanguage); err != nil {
		// A provider failure or a cancel aborts the whole translation: a
		// half-translated copy is worse than none, so the partial target
		// story is removed along with any chapters already written.
		if delErr := r.stories.Delete(ctx, target.ID, target.UserID); delErr != nil && delErr != store.ErrNotFound {
			return "", fmt.Errorf("%v (cleanup of partial copy failed: %v)", err, delErr)
		}
		return "", err
	}
	return target.ID, nil
}

func (r *TranslateRunner) translateChapters(ctx context.Context, rep *Reporter, target *models.Story, chapters []*models.Chapter, targetLanguage string) error {
	now := time.Now().UTC()
	for _, chapter := range chapters {
		if rep.Cancelled(ctx) {
			return errCancelled
		}
		translated := &models.Chapter{
			ID:        uuid.NewString(),
			StoryID:   target.ID,
			Number:    chapter.Number,
			Name:      chapter.Name,
			CreatedAt: now,
		}
		for _, block := range chapter.ContentBlocks {
			if rep.Cancelled(ctx) {
				return errCancelled
			}
			fresh := block
			fresh.ID = uuid.NewString()
			if block.IsText() {
				text, err := r.translator.Generate(ctx, translationPrompt(targetLanguage, block.Content))
				if err != nil {
					return err
				}
				fresh.Content = text
			}
			translated.ContentBlocks = append(translated.ContentBlocks, fresh)
			rep.Advance(ctx, 1, chapter.Name)
		}
		if err := r.stories.InsertChapter(ctx, translated); err != nil {
			return err
		}
	}
	return nil
}

func translationPrompt(targetLanguage, text string) string {
	return fmt.Sprintf("Translate the following text to %s. Preserve the original formatting, paragraph breaks and tone. Return only the translated text with no commentary.\n\n%s", targetLanguage, text)
}
