package models

import "time"

// IndexJob is the message published to the index queue when a document needs
// an embedding pass. The consumer re-reads the document before working, so the
// job only needs to say which document and why.
type IndexJob struct {
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason"` // "upload", "retry", "reindex"
	EnqueuedAt time.Time `json:"enqueued_at"`
}
