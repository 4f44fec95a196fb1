package api

import "github.com/gin-gonic/gin"

// SetupRouter wires every endpoint under /api/v1.
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.Use(IdentityMiddleware())
	{
		files := v1.Group("/files")
		{
			files.POST("", h.Upload)
			files.GET("/search", h.Search)
			files.GET("/embedding-status", h.EmbeddingStatus)
			files.GET("/batch-status", h.BatchStatus)
			files.POST("/reindex", h.Reindex)
			files.GET("/:id", h.GetFile)
			files.GET("/:id/download", h.DownloadFile)
			files.PUT("/:id/tags", h.UpdateTags)
			files.PUT("/:id/visibility", h.UpdateVisibility)
			files.POST("/:id/retry-embedding", h.RetryEmbedding)
			files.DELETE("/:id", h.DeleteFile)
		}

		chat := v1.Group("/chat")
		{
			chat.POST("", h.Chat)
			chat.GET("/sessions", h.ChatHistory)
			chat.DELETE("/sessions/:id", h.ClearChatSession)
		}

		stories := v1.Group("/stories")
		{
			stories.POST("", h.CreateStory)
			stories.GET("", h.ListStories)
			stories.GET("/:id", h.GetStory)
			stories.DELETE("/:id", h.DeleteStory)
			stories.POST("/:id/documents", h.AppendStoryDocuments)
			stories.GET("/:id/messages", h.StoryMessages)
			stories.POST("/:id/chat", h.StoryChat)
			stories.POST("/:id/chapters", h.CreateChapter)
			stories.GET("/:id/chapters", h.ListChapters)
			stories.POST("/:id/chapters/:chapterId/blocks", h.AppendBlock)
			stories.PUT("/:id/chapters/:chapterId/blocks/:blockId", h.UpdateBlock)
			stories.DELETE("/:id/chapters/:chapterId/blocks/:blockId", h.RemoveBlock)
			stories.POST("/:id/translate", h.TranslateStory)
			stories.POST("/:id/export-audio", h.ExportStoryAudio)
		}

		tasks := v1.Group("/tasks")
		{
			tasks.GET("/:id", h.TaskProgress)
			tasks.POST("/:id/cancel", h.CancelTask)
			tasks.GET("/:id/result", h.TaskResult)
		}
	}

	return r
}
