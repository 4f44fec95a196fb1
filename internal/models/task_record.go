package models

import "time"

// TaskStatus is the lifecycle state of one long-running job.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status can never change again.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskKind names the job a task record tracks.
type TaskKind string

const (
	TaskKindReindex     TaskKind = "reindex"
	TaskKindTranslate   TaskKind = "translate"
	TaskKindExportAudio TaskKind = "export_audio"
)

// TaskRecord is the durable progress state for one long-running job. The
// worker is its only writer; pollers read snapshots. Once the status is
// terminal it never reverts, and the record stays queryable for a retention
// window so a poller that lost its connection can still observe the outcome.
type TaskRecord struct {
	ID          string     `bson:"_id" json:"task_id"`
	UserID      string     `bson:"user_id" json:"-"`
	Kind        TaskKind   `bson:"kind" json:"kind"`
	Status      TaskStatus `bson:"status" json:"status"`
	Total       int        `bson:"total" json:"total"`
	Processed   int        `bson:"processed" json:"processed"`
	CurrentItem string     `bson:"current_item" json:"current_item"`
	Errors      []string   `bson:"errors,omitempty" json:"errors,omitempty"`
	// ResultID points at whatever the job produced: the new story id for a
	// translation, the audio object name for an export. Empty for reindex.
	ResultID    string     `bson:"result_id,omitempty" json:"result_id,omitempty"`
	Error       string     `bson:"error,omitempty" json:"error,omitempty"`
	Cancelled   bool       `bson:"cancelled" json:"-"`
	SubmittedAt time.Time  `bson:"submitted_at" json:"submitted_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
