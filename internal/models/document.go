package models

import "time"

// EmbeddingStatus tracks where a document sits in the indexing lifecycle.
type EmbeddingStatus string

const (
	// EmbeddingStatusNone means the document has never been queued.
	EmbeddingStatusNone EmbeddingStatus = "none"
	// EmbeddingStatusPending means the document is queued for indexing.
	EmbeddingStatusPending EmbeddingStatus = "pending"
	// EmbeddingStatusProcessing means an indexing pass is running right now.
	EmbeddingStatusProcessing EmbeddingStatus = "processing"
	// EmbeddingStatusCompleted means a full chunk set is persisted.
	EmbeddingStatusCompleted EmbeddingStatus = "completed"
	// EmbeddingStatusFailed means the last pass hit a provider error. The
	// verbatim provider message is kept in EmbeddingError. Stable but not
	// terminal: a retry moves the document back to pending.
	EmbeddingStatusFailed EmbeddingStatus = "failed"
	// EmbeddingStatusSkipped means there was no extractable text to embed.
	EmbeddingStatusSkipped EmbeddingStatus = "skipped"
	// EmbeddingStatusDisabled means the embedding provider is not configured.
	EmbeddingStatusDisabled EmbeddingStatus = "disabled"
)

// Document is one uploaded artifact. The raw bytes live in object storage
// under StoredObject; Mongo keeps the metadata, the extracted text and the
// indexing state.
type Document struct {
	ID               string          `bson:"_id" json:"id"`
	UserID           string          `bson:"user_id" json:"user_id"`
	Filename         string          `bson:"filename" json:"filename"`
	FileType         string          `bson:"file_type" json:"file_type"`
	StoredObject     string          `bson:"stored_object" json:"-"`
	ContentText      string          `bson:"content_text,omitempty" json:"-"`
	Tags             []string        `bson:"tags" json:"tags"`
	IsPublic         bool            `bson:"is_public" json:"is_public"`
	UploadedAt       time.Time       `bson:"uploaded_at" json:"uploaded_at"`
	EmbeddingStatus  EmbeddingStatus `bson:"embedding_status" json:"embedding_status"`
	EmbeddingCount   int             `bson:"embedding_count" json:"embedding_count"`
	EmbeddingError   string          `bson:"embedding_error,omitempty" json:"embedding_error,omitempty"`
}

// HasText reports whether the document carries any extractable text worth
// embedding.
func (d *Document) HasText() bool {
	return d.ContentText != "" || len(d.Tags) > 0
}

// Chunk is one unit of indexed content: a bounded slice of a document's
// extracted text plus its embedding vector. Chunks for a document are
// contiguous and ordered by Position.
type Chunk struct {
	ID         string    `bson:"_id" json:"id"`
	DocumentID string    `bson:"document_id" json:"document_id"`
	Position   int       `bson:"position" json:"position"`
	Text       string    `bson:"text" json:"text"`
	Embedding  []float32 `bson:"embedding" json:"-"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
