package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
)

// MongoChunkStore is the MongoDB implementation of ChunkStore.
type MongoChunkStore struct {
	collection *mongo.Collection
}

// NewMongoChunkStore creates a new MongoChunkStore.
func NewMongoChunkStore(db *mongo.Database, collectionName string) *MongoChunkStore {
	return &MongoChunkStore{collection: db.Collection(collectionName)}
}

// ReplaceForDocument swaps the document's chunk set for a new one. The old
// set is deleted only here, after the caller has a complete new set in hand,
// so a failed embedding pass never leaves a partial mix. The insert is
// ordered to preserve chunk positions for reading-order reconstruction.
func (s *MongoChunkStore) ReplaceForDocument(ctx context.Context, documentID string, chunks []models.Chunk) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		docs[i] = chunks[i]
	}
	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

// DeleteForDocument removes every chunk of the document and reports how many
// were removed.
func (s *MongoChunkStore) DeleteForDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ForDocuments returns every chunk belonging to the given documents, vectors
// included, ordered by document and position.
func (s *MongoChunkStore) ForDocuments(ctx context.Context, documentIDs []string) ([]models.Chunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	cursor, err := s.collection.Find(ctx,
		bson.M{"document_id": bson.M{"$in": documentIDs}},
		options.Find().SetSort(bson.D{{Key: "document_id", Value: 1}, {Key: "position", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// CountForDocuments counts the chunks stored for the given documents.
func (s *MongoChunkStore) CountForDocuments(ctx context.Context, documentIDs []string) (int64, error) {
	if len(documentIDs) == 0 {
		return 0, nil
	}
	return s.collection.CountDocuments(ctx, bson.M{"document_id": bson.M{"$in": documentIDs}})
}

// CountDocumentsWithChunks counts how many of the given documents have at
// least one chunk.
func (s *MongoChunkStore) CountDocumentsWithChunks(ctx context.Context, documentIDs []string) (int64, error) {
	if len(documentIDs) == 0 {
		return 0, nil
	}
	ids, err := s.collection.Distinct(ctx, "document_id", bson.M{"document_id": bson.M{"$in": documentIDs}})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

var _ ChunkStore = (*MongoChunkStore)(nil)
