package store

import (
	"context"
	"errors"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist or the caller is
	// not allowed to see it.
	ErrNotFound = errors.New("record not found")

	// ErrStaleBlock is returned when a positional edit targets a content
	// block that no longer exists at the identity the caller resolved. The
	// edit fails closed instead of mutating a different element.
	ErrStaleBlock = errors.New("content block no longer exists")

	// ErrTaskFinished is returned when a write targets a task record whose
	// status is already terminal. Terminal states never revert.
	ErrTaskFinished = errors.New("task already finished")
)

// IndexFilter selects documents for a reindex run.
type IndexFilter string

const (
	IndexFilterAll       IndexFilter = "all"
	IndexFilterFailed    IndexFilter = "failed"
	IndexFilterUnindexed IndexFilter = "unindexed"
)

// ScoredDocument is a document paired with its lexical text-search score.
type ScoredDocument struct {
	models.Document `bson:",inline"`
	Score           float64 `bson:"score"`
}

// DocumentStore persists uploaded documents and their indexing state.
type DocumentStore interface {
	Insert(ctx context.Context, doc *models.Document) error
	// GetVisible returns the document if it is owned by userID or public.
	GetVisible(ctx context.Context, id, userID string) (*models.Document, error)
	// GetOwned returns the document only for its owner.
	GetOwned(ctx context.Context, id, userID string) (*models.Document, error)
	// VisibleIDs lists every document id the user may search across.
	VisibleIDs(ctx context.Context, userID string) ([]string, error)
	// ListForReindex selects the visible documents matching a reindex filter.
	ListForReindex(ctx context.Context, userID string, filter IndexFilter) ([]*models.Document, error)
	// BatchStatus returns the visible documents among ids, for status polling.
	BatchStatus(ctx context.Context, userID string, ids []string) ([]*models.Document, error)
	// SetEmbeddingState records one lifecycle transition. errMsg carries the
	// verbatim provider message for failed states.
	SetEmbeddingState(ctx context.Context, id string, status models.EmbeddingStatus, count int, errMsg string) error
	UpdateTags(ctx context.Context, id, userID string, tags []string) error
	SetVisibility(ctx context.Context, id, userID string, public bool) error
	Delete(ctx context.Context, id string) error
	// TextSearch runs the weighted full-text pass and returns documents with
	// their raw text score, best first.
	TextSearch(ctx context.Context, userID, query, fileType string, limit int) ([]ScoredDocument, error)
	CountVisible(ctx context.Context, userID string) (int64, error)
	CountVisibleWithText(ctx context.Context, userID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

// ChunkStore persists embedded chunks. Within one document chunks are written
// in source order; the previous set is only replaced once a full new set is
// ready, so a failed pass never leaves a partial mix behind.
type ChunkStore interface {
	ReplaceForDocument(ctx context.Context, documentID string, chunks []models.Chunk) error
	DeleteForDocument(ctx context.Context, documentID string) (int64, error)
	ForDocuments(ctx context.Context, documentIDs []string) ([]models.Chunk, error)
	CountForDocuments(ctx context.Context, documentIDs []string) (int64, error)
	CountDocumentsWithChunks(ctx context.Context, documentIDs []string) (int64, error)
}

// StoryStore persists collections, their chapters, content blocks and chat
// history. Appending a content block is atomic at the storage layer: it never
// reads the prior array into the process.
type StoryStore interface {
	Insert(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id, userID string) (*models.Story, error)
	List(ctx context.Context, userID string) ([]*models.Story, error)
	Delete(ctx context.Context, id, userID string) error
	AddDocumentRef(ctx context.Context, storyID, userID, documentID string) error

	InsertChapter(ctx context.Context, chapter *models.Chapter) error
	GetChapter(ctx context.Context, storyID, chapterID string) (*models.Chapter, error)
	ListChapters(ctx context.Context, storyID string) ([]*models.Chapter, error)
	AppendBlock(ctx context.Context, storyID, chapterID string, block models.ContentBlock) error
	UpdateTextBlock(ctx context.Context, chapterID, blockID, content string) error
	RemoveBlock(ctx context.Context, chapterID, blockID string) error

	// ReferencingDocument returns every story holding a reference to the
	// document, for cascade cleanup.
	ReferencingDocument(ctx context.Context, documentID string) ([]*models.Story, error)
	// RemoveDocumentRef pulls the reference and flips the story to inactive
	// when it was the last member. Idempotent.
	RemoveDocumentRef(ctx context.Context, storyID, documentID string) (remaining int, becameInactive bool, err error)

	AppendMessage(ctx context.Context, msg *models.StoryMessage) error
	ListMessages(ctx context.Context, storyID string) ([]*models.StoryMessage, error)
}

// TaskStore persists async task records. One worker writes, many pollers
// read; progress writes on a finished task are rejected so a terminal status
// never reverts to running.
type TaskStore interface {
	Create(ctx context.Context, task *models.TaskRecord) error
	GetByID(ctx context.Context, id string) (*models.TaskRecord, error)
	UpdateProgress(ctx context.Context, id string, processed int, currentItem string) error
	AppendError(ctx context.Context, id, message string) error
	Complete(ctx context.Context, id, resultID string) error
	Fail(ctx context.Context, id, errMsg string) error
	RequestCancel(ctx context.Context, id, userID string) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionMessage is one turn of an assistant chat session.
type SessionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionStore keeps the rolling conversation history of general assistant
// sessions.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, msgs ...SessionMessage) error
	History(ctx context.Context, sessionID string) ([]SessionMessage, error)
	Clear(ctx context.Context, sessionID string) error
}

// ArtifactStore holds raw uploaded bytes and exported audio. Documents and
// task records refer to artifacts by object name only.
type ArtifactStore interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) error
	Get(ctx context.Context, objectName string) ([]byte, error)
	Delete(ctx context.Context, objectName string) error
}
