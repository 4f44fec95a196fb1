package tasks

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
)

// Synthesizer turns text into spoken audio. Satisfied by the OpenAI TTS
// client.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ExportAudioRunner renders a story's text into one MP3 artifact as a
// background task. Synthesis runs chapter by chapter and the pieces are
// concatenated into a single object; progress is counted in characters so
// the bar moves proportionally to work, not to chapter count.
type ExportAudioRunner struct {
	stories   store.StoryStore
	speech    Synthesizer
	artifacts store.ArtifactStore
	orch      *Orchestrator
}

// NewExportAudioRunner creates an ExportAudioRunner. A nil synthesizer makes
// Start fail up front.
func NewExportAudioRunner(stories store.StoryStore, speech Synthesizer, artifacts store.ArtifactStore, orch *Orchestrator) *ExportAudioRunner {
	return &ExportAudioRunner{stories: stories, speech: speech, artifacts: artifacts, orch: orch}
}

// Start creates the task record and returns its id plus the total character
// count. On completion the record's result id is the artifact's object name,
// resolved by a separate download call with its own access check.
func (r *ExportAudioRunner) Start(ctx context.Context, userID, storyID string) (taskID string, total int, err error) {
	if r.speech == nil {
		return "", 0, fmt.Errorf("audio export requires a configured AI service")
	}

	story, err := r.stories.GetByID(ctx, storyID, userID)
	if err != nil {
		return "", 0, err
	}
	chapters, err := r.stories.ListChapters(ctx, storyID)
	if err != nil {
		return "", 0, err
	}

	texts := make([]string, 0, len(chapters))
	for _, chapter := range chapters {
		text := chapterText(chapter)
		texts = append(texts, text)
		total += len([]rune(text))
	}
	if total == 0 {
		return "", 0, fmt.Errorf("story has no text content to narrate")
	}

	taskID, err = r.orch.Start(ctx, userID, models.TaskKindExportAudio, total, func(ctx context.Context, rep *Reporter) (string, error) {
		var audio bytes.Buffer
		for i, chapter := range chapters {
			if rep.Cancelled(ctx) {
				return "", errCancelled
			}
			if texts[i] == "" {
				continue
			}
			data, err := r.speech.Synthesize(ctx, texts[i])
			if err != nil {
				return "", err
			}
			audio.Write(data)
			rep.Advance(ctx, len([]rune(texts[i])), chapter.Name)
		}

		objectName := fmt.Sprintf("exports/%s-%s.mp3", story.ID, rep.taskID)
		if err := r.artifacts.Put(ctx, objectName, "audio/mpeg", audio.Bytes()); err != nil {
			return "", err
		}
		return objectName, nil
	})
	if err != nil {
		return "", 0, err
	}
	return taskID, total, nil
}

// chapterText joins a chapter's text blocks in reading order, skipping media
// blocks entirely.
func chapterText(chapter *models.Chapter) string {
	var b bytes.Buffer
	for _, block := range chapter.ContentBlocks {
		if !block.IsText() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block.Content)
	}
	return b.String()
}
