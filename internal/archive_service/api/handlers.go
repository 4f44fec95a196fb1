package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/chat"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/search"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/service"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/store"
	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/archive_service/tasks"
	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler bundles every endpoint's dependencies.
type Handler struct {
	documents   *service.DocumentService
	stories     *service.StoryService
	assistant   *chat.Assistant
	engine      *search.Engine
	orch        *tasks.Orchestrator
	reindex     *tasks.ReindexRunner
	translate   *tasks.TranslateRunner
	exportAudio *tasks.ExportAudioRunner
	artifacts   store.ArtifactStore
	logger      *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(
	documents *service.DocumentService,
	stories *service.StoryService,
	assistant *chat.Assistant,
	engine *search.Engine,
	orch *tasks.Orchestrator,
	reindex *tasks.ReindexRunner,
	translate *tasks.TranslateRunner,
	exportAudio *tasks.ExportAudioRunner,
	artifacts store.ArtifactStore,
	log *logger.Logger,
) *Handler {
	return &Handler{
		documents:   documents,
		stories:     stories,
		assistant:   assistant,
		engine:      engine,
		orch:        orch,
		reindex:     reindex,
		translate:   translate,
		exportAudio: exportAudio,
		artifacts:   artifacts,
		logger:      log,
	}
}

// fail maps domain errors to HTTP status codes.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrStaleBlock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrTaskFinished):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotConfigured), errors.Is(err, service.ErrAINotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Document handlers ---

// Upload accepts a multipart upload with an optional comma-separated tags
// field and returns the stored document immediately; embedding runs in the
// background.
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, err)
		return
	}

	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	doc, err := h.documents.Upload(c.Request.Context(), currentUser(c), fileHeader.Filename, data, tags)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetFile returns one document's metadata.
func (h *Handler) GetFile(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DownloadFile streams the original upload back.
func (h *Handler) DownloadFile(c *gin.Context) {
	doc, data, err := h.documents.Download(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// UpdateTagsRequest carries a tag replacement.
type UpdateTagsRequest struct {
	Tags []string `json:"tags" binding:"required"`
}

// UpdateTags replaces a document's tags.
func (h *Handler) UpdateTags(c *gin.Context) {
	var req UpdateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.documents.UpdateTags(c.Request.Context(), currentUser(c), c.Param("id"), req.Tags)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// UpdateVisibilityRequest toggles public sharing.
type UpdateVisibilityRequest struct {
	IsPublic *bool `json:"is_public" binding:"required"`
}

// UpdateVisibility flips a document between private and public.
func (h *Handler) UpdateVisibility(c *gin.Context) {
	var req UpdateVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.documents.SetVisibility(c.Request.Context(), currentUser(c), c.Param("id"), *req.IsPublic)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteFile runs the delete cascade and reports the affected collections.
func (h *Handler) DeleteFile(c *gin.Context) {
	result, err := h.documents.Delete(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RetryEmbedding requeues one document for indexing.
func (h *Handler) RetryEmbedding(c *gin.Context) {
	doc, err := h.documents.RetryEmbedding(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Embedding retry started",
		"file_id":          doc.ID,
		"embedding_status": doc.EmbeddingStatus,
	})
}

// EmbeddingStatus returns the archive-wide indexing overview.
func (h *Handler) EmbeddingStatus(c *gin.Context) {
	report, err := h.documents.EmbeddingStatus(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// BatchStatus returns indexing states for a comma-separated id list.
func (h *Handler) BatchStatus(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		c.JSON(http.StatusOK, gin.H{"statuses": []struct{}{}})
		return
	}
	statuses, err := h.documents.BatchStatus(c.Request.Context(), currentUser(c), ids)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

// Search runs the hybrid retrieval engine over the visible corpus.
func (h *Handler) Search(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	var priority []string
	if raw := c.Query("priority_ids"); raw != "" {
		priority = strings.Split(raw, ",")
	}

	result, err := h.engine.Search(c.Request.Context(), currentUser(c), c.Query("q"), search.Options{
		FileType:    c.Query("file_type"),
		PriorityIDs: priority,
		LexicalOnly: c.Query("smart") == "false",
		Pagination:  search.Pagination{Page: page, Limit: limit},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reindex starts a background reindex over the filtered document set. With
// no embedding provider a run would only flip every document to disabled, so
// it is rejected up front.
func (h *Handler) Reindex(c *gin.Context) {
	if !h.engine.SemanticEnabled() {
		fail(c, service.ErrAINotConfigured)
		return
	}
	filter := store.IndexFilter(c.DefaultQuery("filter", "all"))
	switch filter {
	case store.IndexFilterAll, store.IndexFilterFailed, store.IndexFilterUnindexed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter must be one of all, failed, unindexed"})
		return
	}

	taskID, total, err := h.reindex.Start(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "total": total, "status": "running"})
}
