package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
)

// MongoTaskStore is the MongoDB implementation of TaskStore.
type MongoTaskStore struct {
	collection *mongo.Collection
}

// NewMongoTaskStore creates a new MongoTaskStore.
func NewMongoTaskStore(db *mongo.Database, collectionName string) *MongoTaskStore {
	return &MongoTaskStore{collection: db.Collection(collectionName)}
}

// Create inserts a new task record.
func (s *MongoTaskStore) Create(ctx context.Context, task *models.TaskRecord) error {
	_, err := s.collection.InsertOne(ctx, task)
	return err
}

// GetByID returns a snapshot of the task record.
func (s *MongoTaskStore) GetByID(ctx context.Context, id string) (*models.TaskRecord, error) {
	var task models.TaskRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateProgress advances the counters of a running task. The filter guards
// on the running status so a progress write can never follow the terminal
// transition, which keeps observed progress monotonic and terminal states
// final.
func (s *MongoTaskStore) UpdateProgress(ctx context.Context, id string, processed int, currentItem string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TaskStatusRunning},
		bson.M{"$set": bson.M{
			"processed":    processed,
			"current_item": currentItem,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrTaskFinished
	}
	return nil
}

// AppendError records one per-item failure without failing the task.
func (s *MongoTaskStore) AppendError(ctx context.Context, id, message string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TaskStatusRunning},
		bson.M{"$push": bson.M{"errors": message}})
	return err
}

// Complete marks the task finished with its result. Guarded on the running
// status: completing an already-finished task is rejected.
func (s *MongoTaskStore) Complete(ctx context.Context, id, resultID string) error {
	return s.finish(ctx, id, bson.M{
		"status":       models.TaskStatusCompleted,
		"result_id":    resultID,
		"current_item": "",
		"completed_at": time.Now().UTC(),
	})
}

// Fail marks the task failed with the verbatim provider message.
func (s *MongoTaskStore) Fail(ctx context.Context, id, errMsg string) error {
	return s.finish(ctx, id, bson.M{
		"status":       models.TaskStatusFailed,
		"error":        errMsg,
		"current_item": "",
		"completed_at": time.Now().UTC(),
	})
}

func (s *MongoTaskStore) finish(ctx context.Context, id string, set bson.M) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TaskStatusRunning},
		bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrTaskFinished
	}
	return nil
}

// RequestCancel sets the cooperative cancel flag. The worker checks it
// between sub-items; there is no hard cancellation. A task that already
// reached a terminal status rejects the request.
func (s *MongoTaskStore) RequestCancel(ctx context.Context, id, userID string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID, "status": models.TaskStatusRunning},
		bson.M{"$set": bson.M{"cancelled": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrTaskFinished
	}
	return nil
}

// DeleteFinishedBefore garbage-collects terminal records past the retention
// window. Records must outlive their job long enough for a reconnecting
// poller to observe the final state.
func (s *MongoTaskStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{
		"status":       bson.M{"$in": bson.A{models.TaskStatusCompleted, models.TaskStatusFailed}},
		"completed_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var _ TaskStore = (*MongoTaskStore)(nil)
