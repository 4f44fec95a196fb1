package tasks

import (
	"context"
	"fmt"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/indexer"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
)

// errCancelled fails a task that honoured its cooperative cancel flag.
var errCancelled = fmt.Errorf("cancelled by user")

// ReindexRunner rebuilds embeddings for a filtered document set as one
// background task. Each document's embedding pass is independent: a provider
// failure on one file is recorded and the run moves on.
type ReindexRunner struct {
	documents store.DocumentStore
	indexer   *indexer.Indexer
	orch      *Orchestrator
}

// NewReindexRunner creates a ReindexRunner.
func NewReindexRunner(documents store.DocumentStore, ix *indexer.Indexer, orch *Orchestrator) *ReindexRunner {
	return &ReindexRunner{documents: documents, indexer: ix, orch: orch}
}

// Start selects the documents matching the filter, creates the task record
// and returns its id plus the known total. The actual reindexing runs in the
// background.
func (r *ReindexRunner) Start(ctx context.Context, userID string, filter store.IndexFilter) (taskID string, total int, err error) {
	docs, err := r.documents.ListForReindex(ctx, userID, filter)
	if err != nil {
		return "", 0, err
	}

	taskID, err = r.orch.Start(ctx, userID, models.TaskKindReindex, len(docs), func(ctx context.Context, rep *Reporter) (string, error) {
		for _, doc := range docs {
			if rep.Cancelled(ctx) {
				return "", errCancelled
			}
			if err := r.indexer.Index(ctx, doc); err != nil {
				// The document record already carries the verbatim provider
				// message; the task keeps a per-file copy for the summary.
				rep.RecordError(ctx, fmt.Sprintf("%s: %v", doc.Filename, err))
			}
			rep.Advance(ctx, 1, doc.Filename)
		}
		return "", nil
	})
	if err != nil {
		return "", 0, err
	}
	return taskID, len(docs), nil
}
