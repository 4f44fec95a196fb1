package api

import (
	"net/http"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateStoryRequest is the payload for creating a curated collection.
type CreateStoryRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	DocumentIDs []string `json:"document_ids"`
	Summary     string   `json:"summary"`
}

// CreateStory creates a story over a subset of the caller's documents.
func (h *Handler) CreateStory(c *gin.Context) {
	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	story, err := h.stories.Create(c.Request.Context(), currentUser(c), req.Name, req.Description, req.DocumentIDs, req.Summary)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

// ListStories returns all of the caller's stories.
func (h *Handler) ListStories(c *gin.Context) {
	stories, err := h.stories.List(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

// GetStory returns one story.
func (h *Handler) GetStory(c *gin.Context) {
	story, err := h.stories.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

// DeleteStory removes a story; the documents it referenced survive.
func (h *Handler) DeleteStory(c *gin.Context) {
	if err := h.stories.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Story deleted"})
}

// AppendDocumentsRequest adds documents to an existing story.
type AppendDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required"`
}

// AppendStoryDocuments attaches more documents to a story.
func (h *Handler) AppendStoryDocuments(c *gin.Context) {
	var req AppendDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	story, err := h.stories.AppendDocuments(c.Request.Context(), currentUser(c), c.Param("id"), req.DocumentIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

// StoryMessages returns the story's persisted conversation.
func (h *Handler) StoryMessages(c *gin.Context) {
	msgs, err := h.stories.Messages(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// CreateChapterRequest is the payload for adding a chapter.
type CreateChapterRequest struct {
	Name   string `json:"name" binding:"required"`
	Number int    `json:"number"`
}

// CreateChapter adds an empty chapter to a story.
func (h *Handler) CreateChapter(c *gin.Context) {
	var req CreateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chapter, err := h.stories.CreateChapter(c.Request.Context(), currentUser(c), c.Param("id"), req.Name, req.Number)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// ListChapters returns a story's chapters in order.
func (h *Handler) ListChapters(c *gin.Context) {
	chapters, err := h.stories.Chapters(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": chapters})
}

// AppendBlockRequest carries one new content block.
type AppendBlockRequest struct {
	Type       models.BlockType `json:"type" binding:"required"`
	Content    string           `json:"content"`
	ObjectName string           `json:"object_name"`
	Caption    string           `json:"caption"`
}

// AppendBlock appends a content block to a chapter.
func (h *Handler) AppendBlock(c *gin.Context) {
	var req AppendBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	block, err := h.stories.AppendBlock(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("chapterId"), models.ContentBlock{
		Type:       req.Type,
		Content:    req.Content,
		ObjectName: req.ObjectName,
		Caption:    req.Caption,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, block)
}

// UpdateBlockRequest replaces a text block's content.
type UpdateBlockRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateBlock rewrites one text block.
func (h *Handler) UpdateBlock(c *gin.Context) {
	var req UpdateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.stories.UpdateTextBlock(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("chapterId"), c.Param("blockId"), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Block updated"})
}

// RemoveBlock deletes one content block.
func (h *Handler) RemoveBlock(c *gin.Context) {
	err := h.stories.RemoveBlock(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("chapterId"), c.Param("blockId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Block removed"})
}
