package indexer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// JobPublisher enqueues index jobs onto the index topic so that uploads
// return immediately and embedding happens asynchronously.
type JobPublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewJobPublisher wraps an existing Kafka writer for the index topic.
func NewJobPublisher(writer *kafka.Writer, log *logger.Logger) *JobPublisher {
	return &JobPublisher{writer: writer, logger: log}
}

// Publish enqueues one index job keyed by document id, so jobs for the same
// document land on the same partition in order.
func (p *JobPublisher) Publish(ctx context.Context, job models.IndexJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.DocumentID),
		Value: payload,
	})
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"document_id": job.DocumentID,
			"reason":      job.Reason,
		}).Error("Failed to publish index job")
		return err
	}
	return nil
}

// JobConsumer reads index jobs from Kafka and drives the Indexer for each.
type JobConsumer struct {
	reader    *kafka.Reader
	indexer   *Indexer
	documents store.DocumentStore
	logger    *logger.Logger
}

// NewJobConsumer creates a consumer over an existing Kafka reader.
func NewJobConsumer(reader *kafka.Reader, ix *Indexer, documents store.DocumentStore, log *logger.Logger) *JobConsumer {
	return &JobConsumer{reader: reader, indexer: ix, documents: documents, logger: log}
}

// Start begins consuming index jobs until the context is cancelled.
func (c *JobConsumer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping index job consumer...")
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() == nil {
						c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error fetching index job from Kafka")
					}
					continue
				}

				if err := c.handle(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
						"partition": msg.Partition,
						"offset":    msg.Offset,
					}).Error("Error handling index job")
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit index job offset")
				}
			}
		}
	}()
}

func (c *JobConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var job models.IndexJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		// A malformed message will never parse; log and move on.
		return err
	}
	doc, err := c.documents.GetOwned(ctx, job.DocumentID, job.UserID)
	if err != nil {
		if err == store.ErrNotFound {
			// Deleted between enqueue and consumption; nothing to index.
			return nil
		}
		return err
	}
	return c.indexer.Index(ctx, doc)
}
