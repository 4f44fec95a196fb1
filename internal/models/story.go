package models

import (
	"fmt"
	"time"
)

// StoryStatus marks whether a collection still has live source documents.
type StoryStatus string

const (
	StoryStatusActive   StoryStatus = "active"
	StoryStatusInactive StoryStatus = "inactive"
)

// Story is a named grouping of document references plus its own authored
// content and chat history. A story is never deleted by cascade cleanup: its
// chapters and messages stay meaningful even after every source document is
// gone, so it only flips to inactive.
type Story struct {
	ID            string      `bson:"_id" json:"id"`
	UserID        string      `bson:"user_id" json:"user_id"`
	Name          string      `bson:"name" json:"name"`
	Description   string      `bson:"description,omitempty" json:"description,omitempty"`
	Language      string      `bson:"language,omitempty" json:"language,omitempty"`
	DocumentIDs   []string    `bson:"document_ids" json:"document_ids"`
	Status        StoryStatus `bson:"status" json:"status"`
	CreatedAt     time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `bson:"updated_at" json:"updated_at"`
	LastMessageAt *time.Time  `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
}

// Chapter is an ordered unit of a story. Content blocks are only ever grown
// through the store's atomic append; whole-array rewrites are what used to
// lose concurrent writes.
type Chapter struct {
	ID            string         `bson:"_id" json:"id"`
	StoryID       string         `bson:"story_id" json:"story_id"`
	Number        int            `bson:"number" json:"number"`
	Name          string         `bson:"name" json:"name"`
	ContentBlocks []ContentBlock `bson:"content_blocks" json:"content_blocks"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
}

// BlockType is the discriminant of the ContentBlock union.
type BlockType string

const (
	BlockTypeText  BlockType = "text"
	BlockTypeImage BlockType = "image"
	BlockTypeVideo BlockType = "video"
	BlockTypeAudio BlockType = "audio"
)

// ContentBlock is a tagged union: a text block carries Content, a media block
// carries an object name plus caption. Each variant is validated at
// construction so downstream code never probes for field presence.
type ContentBlock struct {
	ID         string    `bson:"id" json:"id"`
	Type       BlockType `bson:"type" json:"type"`
	Content    string    `bson:"content,omitempty" json:"content,omitempty"`
	ObjectName string    `bson:"object_name,omitempty" json:"object_name,omitempty"`
	Caption    string    `bson:"caption,omitempty" json:"caption,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// IsText reports whether the block carries translatable text.
func (b ContentBlock) IsText() bool { return b.Type == BlockTypeText }

// NewTextBlock builds a validated text block.
func NewTextBlock(id, content string) (ContentBlock, error) {
	if content == "" {
		return ContentBlock{}, fmt.Errorf("text block requires non-empty content")
	}
	return ContentBlock{ID: id, Type: BlockTypeText, Content: content, CreatedAt: time.Now().UTC()}, nil
}

// NewMediaBlock builds a validated media block of the given type.
func NewMediaBlock(id string, blockType BlockType, objectName, caption string) (ContentBlock, error) {
	switch blockType {
	case BlockTypeImage, BlockTypeVideo, BlockTypeAudio:
	default:
		return ContentBlock{}, fmt.Errorf("invalid media block type %q", blockType)
	}
	if objectName == "" {
		return ContentBlock{}, fmt.Errorf("%s block requires an object name", blockType)
	}
	return ContentBlock{ID: id, Type: blockType, ObjectName: objectName, Caption: caption, CreatedAt: time.Now().UTC()}, nil
}

// ValidateBlock checks an externally supplied block against the union rules.
func ValidateBlock(b ContentBlock) error {
	if b.ID == "" {
		return fmt.Errorf("content block requires an id")
	}
	switch b.Type {
	case BlockTypeText:
		if b.Content == "" {
			return fmt.Errorf("text block requires non-empty content")
		}
	case BlockTypeImage, BlockTypeVideo, BlockTypeAudio:
		if b.ObjectName == "" {
			return fmt.Errorf("%s block requires an object name", b.Type)
		}
	default:
		return fmt.Errorf("unknown content block type %q", b.Type)
	}
	return nil
}

// StoryMessage is one turn of a story's chat history.
type StoryMessage struct {
	ID        string       `bson:"_id" json:"id"`
	StoryID   string       `bson:"story_id" json:"story_id"`
	Role      string       `bson:"role" json:"role"`
	Content   string       `bson:"content" json:"content"`
	Sources   []ChatSource `bson:"sources,omitempty" json:"sources,omitempty"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
}

// ChatSource is one deduplicated citation attached to an assistant answer.
type ChatSource struct {
	DocumentID string  `bson:"document_id" json:"document_id"`
	Filename   string  `bson:"filename" json:"filename"`
	FileType   string  `bson:"file_type" json:"file_type"`
	Excerpt    string  `bson:"excerpt" json:"excerpt"`
	Relevance  float64 `bson:"relevance" json:"relevance"`
}
