// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/pos-insight/backend/internal/rules"
	"github.com/pos-insight/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store   storage.Store
	TaskMgr TaskManager
	RuleSet *rules.RuleSet
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Archive  ArchiveHandler
	Analysis AnalysisHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version),
		Archive:  NewArchiveHandler(deps.Store),
		Analysis: NewAnalysisHandler(deps.Store, deps.TaskMgr, deps.RuleSet),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Archive management routes
	archiveGroup := e.Group("/api/archives")
	archiveGroup.POST("/upload", handlers.Archive.HandleUploadArchive)
	archiveGroup.GET("/recent", handlers.Archive.HandleListArchives)
	archiveGroup.GET("/:id", handlers.Archive.HandleGetArchive)
	archiveGroup.DELETE("/:id", handlers.Archive.HandleDeleteArchive)
	archiveGroup.PUT("/:id", handlers.Archive.HandleRenameArchive)

	// Analysis task routes
	analysisGroup := e.Group("/api/analysis")
	analysisGroup.POST("", handlers.Analysis.HandleStartAnalysis)
	analysisGroup.GET("/:id/status", handlers.Analysis.HandleTaskStatus)
	analysisGroup.DELETE("/:id", handlers.Analysis.HandleCancelTask)
	analysisGroup.GET("/:id/result", handlers.Analysis.HandleTaskResult)
	analysisGroup.GET("/:id/records/msgpack", handlers.Analysis.HandleTaskRecordsMsgpack)
	analysisGroup.GET("/:id/export", handlers.Analysis.HandleTaskExport)
}
