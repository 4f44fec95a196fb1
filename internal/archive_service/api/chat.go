package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatRequest is one turn of the general assistant conversation.
type ChatRequest struct {
	Message         string   `json:"message" binding:"required"`
	SessionID       string   `json:"session_id"`
	PriorityFileIDs []string `json:"priority_file_ids"`
}

// Chat answers a question grounded in the caller's archive.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := h.assistant.Ask(c.Request.Context(), currentUser(c), req.SessionID, req.Message, req.PriorityFileIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// ChatHistory returns the rolling history of one session.
func (h *Handler) ChatHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	history, err := h.assistant.SessionHistory(c.Request.Context(), sessionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": history})
}

// ClearChatSession discards a session's history.
func (h *Handler) ClearChatSession(c *gin.Context) {
	if err := h.assistant.ClearSession(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session cleared"})
}

// StoryChatRequest is one turn of a story-scoped conversation.
type StoryChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// StoryChat answers a question grounded only in the story's documents.
func (h *Handler) StoryChat(c *gin.Context) {
	var req StoryChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := h.assistant.AskStory(c.Request.Context(), currentUser(c), c.Param("id"), req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}
