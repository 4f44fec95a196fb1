package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
)

// MongoDocumentStore is the MongoDB implementation of DocumentStore.
type MongoDocumentStore struct {
	collection *mongo.Collection
}

// NewMongoDocumentStore creates a new MongoDocumentStore.
func NewMongoDocumentStore(db *mongo.Database, collectionName string) *MongoDocumentStore {
	return &MongoDocumentStore{collection: db.Collection(collectionName)}
}

// visibleFilter matches documents the user owns plus public ones. Applied
// before any scoring so search cannot leak the existence of foreign files.
func visibleFilter(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"user_id": userID},
		bson.M{"is_public": true},
	}}
}

// EnsureIndexes creates the weighted text index the lexical pass relies on.
// Filename matches outrank tag matches, which outrank body matches.
func (s *MongoDocumentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "filename", Value: "text"},
			{Key: "tags", Value: "text"},
			{Key: "content_text", Value: "text"},
		},
		Options: options.Index().
			SetName("documents_text_search").
			SetWeights(bson.D{
				{Key: "filename", Value: 10},
				{Key: "tags", Value: 5},
				{Key: "content_text", Value: 1},
			}).
			SetDefaultLanguage("english"),
	})
	if err != nil {
		return fmt.Errorf("failed to create text index: %w", err)
	}
	return nil
}

// Insert stores a new document.
func (s *MongoDocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	_, err := s.collection.InsertOne(ctx, doc)
	return err
}

// GetVisible returns the document if the user owns it or it is public.
func (s *MongoDocumentStore) GetVisible(ctx context.Context, id, userID string) (*models.Document, error) {
	filter := bson.M{"_id": id}
	for k, v := range visibleFilter(userID) {
		filter[k] = v
	}
	return s.findOne(ctx, filter)
}

// GetOwned returns the document only for its owner.
func (s *MongoDocumentStore) GetOwned(ctx context.Context, id, userID string) (*models.Document, error) {
	return s.findOne(ctx, bson.M{"_id": id, "user_id": userID})
}

func (s *MongoDocumentStore) findOne(ctx context.Context, filter bson.M) (*models.Document, error) {
	var doc models.Document
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// VisibleIDs lists every document id the user may search across.
func (s *MongoDocumentStore) VisibleIDs(ctx context.Context, userID string) ([]string, error) {
	cursor, err := s.collection.Find(ctx, visibleFilter(userID),
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cursor.Err()
}

// ListForReindex selects the visible documents matching a reindex filter.
func (s *MongoDocumentStore) ListForReindex(ctx context.Context, userID string, filter IndexFilter) ([]*models.Document, error) {
	query := visibleFilter(userID)
	switch filter {
	case IndexFilterFailed:
		query["embedding_status"] = models.EmbeddingStatusFailed
	case IndexFilterUnindexed:
		query["embedding_status"] = bson.M{"$in": bson.A{
			models.EmbeddingStatusFailed,
			models.EmbeddingStatusSkipped,
			models.EmbeddingStatusDisabled,
			models.EmbeddingStatusPending,
			models.EmbeddingStatusNone,
			nil,
		}}
	}

	cursor, err := s.collection.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// BatchStatus returns the visible documents among ids.
func (s *MongoDocumentStore) BatchStatus(ctx context.Context, userID string, ids []string) ([]*models.Document, error) {
	filter := bson.M{"_id": bson.M{"$in": ids}}
	for k, v := range visibleFilter(userID) {
		filter[k] = v
	}
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SetEmbeddingState records one lifecycle transition.
func (s *MongoDocumentStore) SetEmbeddingState(ctx context.Context, id string, status models.EmbeddingStatus, count int, errMsg string) error {
	update := bson.M{
		"embedding_status": status,
		"embedding_count":  count,
		"embedding_error":  errMsg,
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTags replaces the owner's tag list.
func (s *MongoDocumentStore) UpdateTags(ctx context.Context, id, userID string, tags []string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"tags": tags}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVisibility toggles the public flag.
func (s *MongoDocumentStore) SetVisibility(ctx context.Context, id, userID string, public bool) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_public": public}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document record.
func (s *MongoDocumentStore) Delete(ctx context.Context, id string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// TextSearch runs the weighted $text pass and returns raw textScore values,
// best first, ties broken by newest upload.
func (s *MongoDocumentStore) TextSearch(ctx context.Context, userID, query, fileType string, limit int) ([]ScoredDocument, error) {
	filter := bson.M{"$text": bson.M{"$search": query}}
	for k, v := range visibleFilter(userID) {
		filter[k] = v
	}
	if fileType != "" && fileType != "all" {
		filter["file_type"] = fileType
	}

	opts := options.Find().
		SetProjection(bson.M{
			"content_text": 0,
			"score":        bson.M{"$meta": "textScore"},
		}).
		SetSort(bson.D{
			{Key: "score", Value: bson.M{"$meta": "textScore"}},
			{Key: "uploaded_at", Value: -1},
		}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []ScoredDocument
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// CountVisible counts every document the user may see.
func (s *MongoDocumentStore) CountVisible(ctx context.Context, userID string) (int64, error) {
	return s.collection.CountDocuments(ctx, visibleFilter(userID))
}

// CountVisibleWithText counts visible documents that carry extracted text.
func (s *MongoDocumentStore) CountVisibleWithText(ctx context.Context, userID string) (int64, error) {
	filter := visibleFilter(userID)
	filter["content_text"] = bson.M{"$exists": true, "$ne": ""}
	return s.collection.CountDocuments(ctx, filter)
}

var _ DocumentStore = (*MongoDocumentStore)(nil)
