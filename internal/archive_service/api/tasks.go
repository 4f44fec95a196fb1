package api

import (
	"net/http"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/models"

	"github.com/gin-gonic/gin"
)

// TranslateStoryRequest names the language a story copy should be written in.
type TranslateStoryRequest struct {
	TargetLanguage string `json:"target_language" binding:"required"`
}

// TranslateStory starts a background translation of a whole story.
func (h *Handler) TranslateStory(c *gin.Context) {
	var req TranslateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taskID, total, err := h.translate.Start(c.Request.Context(), currentUser(c), c.Param("id"), req.TargetLanguage)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "total": total, "status": "running"})
}

// ExportStoryAudio starts a background narration export of a story.
func (h *Handler) ExportStoryAudio(c *gin.Context) {
	taskID, total, err := h.exportAudio.Start(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "total": total, "status": "running"})
}

// taskForCaller loads a task record and hides other users' tasks.
func (h *Handler) taskForCaller(c *gin.Context) (*models.TaskRecord, bool) {
	task, err := h.orch.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if task.UserID != currentUser(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return task, true
}

// TaskProgress returns a progress snapshot for polling.
func (h *Handler) TaskProgress(c *gin.Context) {
	task, ok := h.taskForCaller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, task)
}

// CancelTask requests a cooperative stop of a running task.
func (h *Handler) CancelTask(c *gin.Context) {
	if _, ok := h.taskForCaller(c); !ok {
		return
	}
	if err := h.orch.Cancel(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cancellation requested"})
}

// TaskResult returns what a completed task produced. Audio exports stream the
// artifact; other kinds return the result id.
func (h *Handler) TaskResult(c *gin.Context) {
	task, ok := h.taskForCaller(c)
	if !ok {
		return
	}
	if task.Status != models.TaskStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "task has not completed", "status": task.Status})
		return
	}
	if task.Kind == models.TaskKindExportAudio {
		data, err := h.artifacts.Get(c.Request.Context(), task.ResultID)
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+task.ID+`.mp3"`)
		c.Data(http.StatusOK, "audio/mpeg", data)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": task.ID, "kind": task.Kind, "result_id": task.ResultID})
}
