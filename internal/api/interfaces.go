// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/pos-insight/backend/internal/models"
	"github.com/pos-insight/backend/internal/task"
)

// ArchiveHandler handles archive upload and management operations
type ArchiveHandler interface {
	HandleUploadArchive(c echo.Context) error
	HandleListArchives(c echo.Context) error
	HandleGetArchive(c echo.Context) error
	HandleDeleteArchive(c echo.Context) error
	HandleRenameArchive(c echo.Context) error
}

// AnalysisHandler handles analysis task operations
type AnalysisHandler interface {
	HandleStartAnalysis(c echo.Context) error
	HandleTaskStatus(c echo.Context) error
	HandleCancelTask(c echo.Context) error
	HandleTaskResult(c echo.Context) error
	HandleTaskRecordsMsgpack(c echo.Context) error
	HandleTaskExport(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// TaskManager defines the interface for analysis task management
// This allows mocking in tests
type TaskManager interface {
	StartAnalysis(archiveID, archivePath string, kind models.AnalysisKind, opts task.Options) (*models.AnalysisTask, error)
	GetTask(taskID string) (*models.AnalysisTask, error)
	GetResult(taskID string) (*task.Result, error)
	Cancel(taskID string) error
}
