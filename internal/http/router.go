package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(securityHeadersMiddleware())

	health := NewHealthController(cfg.Health, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := router.Group("/api")

	booksController := NewBooksController(cfg.Books, cfg.Chapters, cfg.Progress, cfg.Refresher, cfg.Preferences)
	chaptersController := NewChaptersController(cfg.Chapters, cfg.Refresher)
	if cfg.TaskQueue != nil {
		booksController.SetQueue(cfg.TaskQueue)
		chaptersController.SetQueue(cfg.TaskQueue)
	}

	api.GET("/books", booksController.ListBooks)
	api.GET("/books/:id/chapters", booksController.ListChapters)
	api.POST("/books/:id/refresh", booksController.RefreshBook)
	api.GET("/books/:id/progress", booksController.GetProgress)

	api.GET("/chapters/:id/items", chaptersController.Items)
	api.POST("/chapters/:id/reload", chaptersController.Reload)

	if cfg.Images != nil {
		imagesController := NewImagesController(cfg.Books, cfg.Chapters, cfg.Images)
		api.GET("/books/:id/cover", imagesController.Cover)
		api.GET("/chapters/:id/images/:index", imagesController.ChapterImage)
	}

	if cfg.TaskStatus != nil {
		tasksController := NewTasksController(cfg.TaskStatus)
		api.GET("/tasks/:id", tasksController.Status)
	}

	progressController := NewProgressController(cfg.Positions)
	api.PUT("/progress", progressController.Report)

	preferencesController := NewPreferencesController(cfg.Preferences)
	api.GET("/preferences", preferencesController.Get)
	api.PUT("/preferences", preferencesController.Update)

	sessionController := NewSessionController(cfg.Sessions)
	sessions := api.Group("/session")
	{
		sessions.GET("", sessionController.Get)
		sessions.POST("", sessionController.Open)
		sessions.DELETE("", sessionController.Close)
		sessions.POST("/detach", sessionController.Detach)
		sessions.POST("/attach", sessionController.Attach)
		sessions.GET("/events", sessionController.Events)
		sessions.PUT("/position", sessionController.UpdatePosition)
		sessions.POST("/chapter/next", sessionController.NextChapter)
		sessions.POST("/chapter/previous", sessionController.PreviousChapter)
		sessions.POST("/playback", sessionController.StartPlayback)
		sessions.DELETE("/playback", sessionController.StopPlayback)
	}

	return router
}
