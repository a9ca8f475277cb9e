// handlers_analysis.go - Analysis task handlers
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pos-insight/backend/internal/analyzer"
	"github.com/pos-insight/backend/internal/models"
	"github.com/pos-insight/backend/internal/rules"
	"github.com/pos-insight/backend/internal/storage"
	"github.com/pos-insight/backend/internal/task"
)

// AnalysisHandlerImpl implements the AnalysisHandler interface
type AnalysisHandlerImpl struct {
	store   storage.Store
	taskMgr TaskManager
	ruleSet *rules.RuleSet
}

// NewAnalysisHandler creates a new analysis handler instance. ruleSet
// supplies server-side default event codes and may be nil.
func NewAnalysisHandler(store storage.Store, taskMgr TaskManager, ruleSet *rules.RuleSet) AnalysisHandler {
	return &AnalysisHandlerImpl{
		store:   store,
		taskMgr: taskMgr,
		ruleSet: ruleSet,
	}
}

// HandleStartAnalysis starts a background analysis task over an uploaded
// archive and returns the pending task for polling
func (h *AnalysisHandlerImpl) HandleStartAnalysis(c echo.Context) error {
	var req startAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	if _, err := h.store.Get(req.ArchiveID); err != nil {
		return NewNotFoundError("archive", req.ArchiveID)
	}
	archivePath, err := h.store.GetFilePath(req.ArchiveID)
	if err != nil {
		return NewNotFoundError("archive", req.ArchiveID)
	}

	opts := req.options()
	if !opts.UseCustomCodes && h.ruleSet != nil && h.ruleSet.UseCustom {
		opts.CustomCodes = h.ruleSet.EventCodes
		opts.UseCustomCodes = true
	}

	t, err := h.taskMgr.StartAnalysis(req.ArchiveID, archivePath, models.AnalysisKind(req.Kind), opts)
	if err != nil {
		return NewBadRequestError("failed to start analysis", err)
	}

	if err := h.store.SetStatus(req.ArchiveID, "analyzing"); err != nil {
		c.Logger().Warnf("setting archive status: %v", err)
	}

	return c.JSON(http.StatusAccepted, t)
}

// HandleTaskStatus returns the current task snapshot
func (h *AnalysisHandlerImpl) HandleTaskStatus(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	t, err := h.taskMgr.GetTask(id)
	if err != nil {
		return NewNotFoundError("task", id)
	}
	return c.JSON(http.StatusOK, t)
}

// HandleCancelTask abandons a running task
func (h *AnalysisHandlerImpl) HandleCancelTask(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.taskMgr.Cancel(id); err != nil {
		return NewNotFoundError("task", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleTaskResult returns the completed result as JSON
func (h *AnalysisHandlerImpl) HandleTaskResult(c echo.Context) error {
	result, err := h.resultFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleTaskRecordsMsgpack returns the completed records msgpack-encoded.
// The frontend uses this for large result sets where JSON is too slow.
func (h *AnalysisHandlerImpl) HandleTaskRecordsMsgpack(c echo.Context) error {
	result, err := h.resultFor(c)
	if err != nil {
		return err
	}

	rows := make([][]string, len(result.Records))
	for i, r := range result.Records {
		rows[i] = r.TableRow()
	}
	data, merr := msgpack.Marshal(rows)
	if merr != nil {
		return NewInternalError("failed to encode records", merr)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// HandleTaskExport returns the untruncated export dump as a text download
func (h *AnalysisHandlerImpl) HandleTaskExport(c echo.Context) error {
	result, err := h.resultFor(c)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "analysis_"+c.Param("id")+".txt"))
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(result.Export))
}

func (h *AnalysisHandlerImpl) resultFor(c echo.Context) (*task.Result, *APIError) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}

	result, err := h.taskMgr.GetResult(id)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotComplete) {
			return nil, NewConflictError(err.Error())
		}
		return nil, NewNotFoundError("task", id)
	}
	return result, nil
}

// Request/Response types

type startAnalysisRequest struct {
	ArchiveID string `json:"archiveId"`
	Kind      string `json:"kind"`
	Date      string `json:"date"`

	// Support options
	IncludeWarnings bool `json:"includeWarnings"`
	Receipts        bool `json:"receipts"`

	// Marking options
	Engine string `json:"engine"`
	Mode   string `json:"mode"`

	// OS event options
	CustomCodes    []string `json:"customCodes"`
	UseCustomCodes bool     `json:"useCustomCodes"`
}

func (r *startAnalysisRequest) validate() error {
	if r.ArchiveID == "" {
		return NewValidationError("archiveId")
	}
	if r.Date == "" {
		return NewValidationError("date")
	}
	switch models.AnalysisKind(r.Kind) {
	case models.KindSupport, models.KindMarking, models.KindOSEvents, models.KindPaymentTerminal:
	default:
		return NewValidationError("kind")
	}
	switch analyzer.ScanEngine(r.Engine) {
	case "", analyzer.EngineDevices, analyzer.EngineConsole:
	default:
		return NewValidationError("engine")
	}
	switch task.MarkingMode(r.Mode) {
	case "", task.MarkingScans, task.MarkingInfo, task.MarkingConnection,
		task.MarkingCredentials, task.MarkingOpening:
	default:
		return NewValidationError("mode")
	}
	return nil
}

func (r *startAnalysisRequest) options() task.Options {
	return task.Options{
		Date:            r.Date,
		IncludeWarnings: r.IncludeWarnings,
		Receipts:        r.Receipts,
		Engine:          analyzer.ScanEngine(r.Engine),
		Mode:            task.MarkingMode(r.Mode),
		CustomCodes:     r.CustomCodes,
		UseCustomCodes:  r.UseCustomCodes,
	}
}
