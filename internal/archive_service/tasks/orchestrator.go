package tasks

import (
	"context"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"

	"github.com/google/uuid"
)

// WorkFunc is the body of one background job. It reports progress through
// the Reporter and returns the id of whatever it produced (new story id,
// audio object name), or an error that fails the whole task.
type WorkFunc func(ctx context.Context, rep *Reporter) (resultID string, err error)

// Orchestrator runs long jobs decoupled from the HTTP request that started
// them: Start returns as soon as the durable task record exists, the work
// runs on its own goroutine and context, and pollers read snapshots until
// they see a terminal status. A client that stops polling does not stop the
// job.
type Orchestrator struct {
	tasks  store.TaskStore
	logger *logger.Logger
}

// NewOrchestrator creates an Orchestrator over a task record store.
func NewOrchestrator(tasks store.TaskStore, log *logger.Logger) *Orchestrator {
	return &Orchestrator{tasks: tasks, logger: log}
}

// Start creates the task record and launches run in the background. The
// returned id is immediately pollable. The worker deliberately does not
// inherit the caller's context: the job must outlive the starting request.
func (o *Orchestrator) Start(ctx context.Context, userID string, kind models.TaskKind, total int, run WorkFunc) (string, error) {
	record := &models.TaskRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Status:      models.TaskStatusRunning,
		Total:       total,
		SubmittedAt: time.Now().UTC(),
	}
	if err := o.tasks.Create(ctx, record); err != nil {
		return "", err
	}

	go o.run(record.ID, kind, run)
	return record.ID, nil
}

func (o *Orchestrator) run(taskID string, kind models.TaskKind, run WorkFunc) {
	ctx := context.Background()
	rep := &Reporter{tasks: o.tasks, taskID: taskID}

	resultID, err := run(ctx, rep)
	if err != nil {
		o.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"task_id": taskID,
			"kind":    kind,
		}).Error("Background task failed")
		if failErr := o.tasks.Fail(ctx, taskID, err.Error()); failErr != nil && failErr != store.ErrTaskFinished {
			o.logger.WithError(models.ErrorInfo{Message: failErr.Error()}).Error("Failed to record task failure")
		}
		return
	}

	if err := o.tasks.Complete(ctx, taskID, resultID); err != nil && err != store.ErrTaskFinished {
		o.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"task_id": taskID,
		}).Error("Failed to record task completion")
	}
}

// GetProgress returns a snapshot of the task record.
func (o *Orchestrator) GetProgress(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	return o.tasks.GetByID(ctx, taskID)
}

// Cancel sets the cooperative cancel flag. Workers check it between
// sub-items; anything already in flight still finishes.
func (o *Orchestrator) Cancel(ctx context.Context, taskID, userID string) error {
	return o.tasks.RequestCancel(ctx, taskID, userID)
}

// StartRetentionGC deletes finished task records older than retention on an
// hourly sweep, until the context is cancelled. Records must stay queryable
// for the whole window so a poller that lost its connection mid-job can
// still observe the final state.
func (o *Orchestrator) StartRetentionGC(ctx context.Context, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := o.tasks.DeleteFinishedBefore(ctx, time.Now().UTC().Add(-retention))
				if err != nil {
					o.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Task record sweep failed")
					continue
				}
				if removed > 0 {
					o.logger.WithPayload(map[string]interface{}{"removed": removed}).Info("Swept finished task records")
				}
			}
		}
	}()
}

// Reporter is the worker's handle on its own task record.
type Reporter struct {
	tasks     store.TaskStore
	taskID    string
	processed int
}

// Advance adds n processed sub-items and records what is being worked on.
// Progress only ever grows.
func (r *Reporter) Advance(ctx context.Context, n int, currentItem string) {
	r.processed += n
	// Progress writes are advisory: a write on a finished record is rejected
	// by the store and the job keeps going either way.
	_ = r.tasks.UpdateProgress(ctx, r.taskID, r.processed, currentItem)
}

// RecordError appends one per-item failure without failing the task.
func (r *Reporter) RecordError(ctx context.Context, message string) {
	_ = r.tasks.AppendError(ctx, r.taskID, message)
}

// Cancelled reports whether a cooperative cancel was requested. Workers call
// it between sub-items.
func (r *Reporter) Cancelled(ctx context.Context) bool {
	record, err := r.tasks.GetByID(ctx, r.taskID)
	if err != nil {
		return false
	}
	return record.Cancelled
}
