package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"
)

// MongoStoryStore is the MongoDB implementation of StoryStore. Stories,
// chapters and messages live in separate collections so chapter content can
// grow through atomic pushes instead of story-document rewrites.
type MongoStoryStore struct {
	stories  *mongo.Collection
	chapters *mongo.Collection
	messages *mongo.Collection
}

// NewMongoStoryStore creates a new MongoStoryStore.
func NewMongoStoryStore(db *mongo.Database) *MongoStoryStore {
	return &MongoStoryStore{
		stories:  db.Collection("stories"),
		chapters: db.Collection("chapters"),
		messages: db.Collection("story_messages"),
	}
}

// Insert stores a new story.
func (s *MongoStoryStore) Insert(ctx context.Context, story *models.Story) error {
	_, err := s.stories.InsertOne(ctx, story)
	return err
}

// GetByID returns the user's story.
func (s *MongoStoryStore) GetByID(ctx context.Context, id, userID string) (*models.Story, error) {
	var story models.Story
	err := s.stories.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&story)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// List returns the user's stories, most recently updated first.
func (s *MongoStoryStore) List(ctx context.Context, userID string) ([]*models.Story, error) {
	cursor, err := s.stories.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stories []*models.Story
	if err := cursor.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// Delete removes a story together with its chapters and messages.
func (s *MongoStoryStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.stories.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := s.chapters.DeleteMany(ctx, bson.M{"story_id": id}); err != nil {
		return err
	}
	_, err = s.messages.DeleteMany(ctx, bson.M{"story_id": id})
	return err
}

// AddDocumentRef attaches a document to the story. $addToSet keeps the
// operation idempotent under concurrent attaches.
func (s *MongoStoryStore) AddDocumentRef(ctx context.Context, storyID, userID, documentID string) error {
	res, err := s.stories.UpdateOne(ctx,
		bson.M{"_id": storyID, "user_id": userID},
		bson.M{
			"$addToSet": bson.M{"document_ids": documentID},
			"$set": bson.M{
				"updated_at": time.Now().UTC(),
				"status":     models.StoryStatusActive,
			},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertChapter stores a new chapter.
func (s *MongoStoryStore) InsertChapter(ctx context.Context, chapter *models.Chapter) error {
	_, err := s.chapters.InsertOne(ctx, chapter)
	return err
}

// GetChapter returns one chapter of a story.
func (s *MongoStoryStore) GetChapter(ctx context.Context, storyID, chapterID string) (*models.Chapter, error) {
	var chapter models.Chapter
	err := s.chapters.FindOne(ctx, bson.M{"_id": chapterID, "story_id": storyID}).Decode(&chapter)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

// ListChapters returns a story's chapters in reading order.
func (s *MongoStoryStore) ListChapters(ctx context.Context, storyID string) ([]*models.Chapter, error) {
	cursor, err := s.chapters.Find(ctx, bson.M{"story_id": storyID},
		options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chapters []*models.Chapter
	if err := cursor.All(ctx, &chapters); err != nil {
		return nil, err
	}
	return chapters, nil
}

// AppendBlock adds one content block through a single $push. The prior array
// never enters this process, so concurrent appends compose no matter how many
// writers race.
func (s *MongoStoryStore) AppendBlock(ctx context.Context, storyID, chapterID string, block models.ContentBlock) error {
	res, err := s.chapters.UpdateOne(ctx,
		bson.M{"_id": chapterID, "story_id": storyID},
		bson.M{"$push": bson.M{"content_blocks": block}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTextBlock edits one text block in place, addressed by its id rather
// than its position. If the block has vanished under a concurrent edit the
// update matches nothing and fails closed with ErrStaleBlock.
func (s *MongoStoryStore) UpdateTextBlock(ctx context.Context, chapterID, blockID, content string) error {
	res, err := s.chapters.UpdateOne(ctx,
		bson.M{
			"_id":            chapterID,
			"content_blocks": bson.M{"$elemMatch": bson.M{"id": blockID, "type": models.BlockTypeText}},
		},
		bson.M{"$set": bson.M{"content_blocks.$[blk].content": content}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"blk.id": blockID}},
		}))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStaleBlock
	}
	return nil
}

// RemoveBlock deletes one block by id. Removing an already-removed block is
// reported as stale rather than silently succeeding, mirroring the edit path.
func (s *MongoStoryStore) RemoveBlock(ctx context.Context, chapterID, blockID string) error {
	res, err := s.chapters.UpdateOne(ctx,
		bson.M{"_id": chapterID},
		bson.M{"$pull": bson.M{"content_blocks": bson.M{"id": blockID}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	if res.ModifiedCount == 0 {
		return ErrStaleBlock
	}
	return nil
}

// ReferencingDocument returns every story that references the document.
func (s *MongoStoryStore) ReferencingDocument(ctx context.Context, documentID string) ([]*models.Story, error) {
	cursor, err := s.stories.Find(ctx, bson.M{"document_ids": documentID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stories []*models.Story
	if err := cursor.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// RemoveDocumentRef pulls the reference in one update and flips the story to
// inactive when nothing remains. Running it twice for the same pair is a
// no-op.
func (s *MongoStoryStore) RemoveDocumentRef(ctx context.Context, storyID, documentID string) (int, bool, error) {
	var updated models.Story
	err := s.stories.FindOneAndUpdate(ctx,
		bson.M{"_id": storyID},
		bson.M{
			"$pull": bson.M{"document_ids": documentID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, err
	}

	remaining := len(updated.DocumentIDs)
	becameInactive := false
	if remaining == 0 && updated.Status == models.StoryStatusActive {
		_, err = s.stories.UpdateOne(ctx,
			bson.M{"_id": storyID, "status": models.StoryStatusActive},
			bson.M{"$set": bson.M{"status": models.StoryStatusInactive}})
		if err != nil {
			return remaining, false, err
		}
		becameInactive = true
	}
	return remaining, becameInactive, nil
}

// AppendMessage appends one chat turn and bumps the story's activity stamps.
func (s *MongoStoryStore) AppendMessage(ctx context.Context, msg *models.StoryMessage) error {
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return err
	}
	_, err := s.stories.UpdateOne(ctx,
		bson.M{"_id": msg.StoryID},
		bson.M{"$set": bson.M{
			"last_message_at": msg.CreatedAt,
			"updated_at":      msg.CreatedAt,
		}})
	return err
}

// ListMessages returns a story's chat history, oldest first.
func (s *MongoStoryStore) ListMessages(ctx context.Context, storyID string) ([]*models.StoryMessage, error) {
	cursor, err := s.messages.Find(ctx, bson.M{"story_id": storyID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []*models.StoryMessage
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

var _ StoryStore = (*MongoStoryStore)(nil)
