// handlers_analysis_test.go - Tests for analysis task handlers
package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pos-insight/backend/internal/models"
	"github.com/pos-insight/backend/internal/rules"
	"github.com/pos-insight/backend/internal/task"
	"github.com/pos-insight/backend/internal/testutil"
)

// mockTaskManager implements TaskManager with canned responses.
type mockTaskManager struct {
	started     []task.Options
	startedKind models.AnalysisKind
	task        *models.AnalysisTask
	result      *task.Result
	getErr      error
	resultErr   error
	cancelled   []string
}

func (m *mockTaskManager) StartAnalysis(archiveID, archivePath string, kind models.AnalysisKind, opts task.Options) (*models.AnalysisTask, error) {
	m.started = append(m.started, opts)
	m.startedKind = kind
	t := models.NewAnalysisTask("task-1", archiveID, kind)
	return t, nil
}

func (m *mockTaskManager) GetTask(taskID string) (*models.AnalysisTask, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.task, nil
}

func (m *mockTaskManager) GetResult(taskID string) (*task.Result, error) {
	if m.resultErr != nil {
		return nil, m.resultErr
	}
	return m.result, nil
}

func (m *mockTaskManager) Cancel(taskID string) error {
	m.cancelled = append(m.cancelled, taskID)
	return nil
}

func newAnalysisContext(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAnalysisHandler_StartAnalysis(t *testing.T) {
	e := echo.New()
	store := testutil.NewMockStorage()
	store.AddArchive("arch-1", "export.zip", "/tmp/arch-1.zip")
	mgr := &mockTaskManager{}
	h := NewAnalysisHandler(store, mgr, nil)

	c, rec := newAnalysisContext(e, http.MethodPost, "/api/analysis",
		`{"archiveId":"arch-1","kind":"marking","date":"2024-01-15","mode":"info"}`)

	if assert.NoError(t, h.HandleStartAnalysis(c)) {
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	}
	if assert.Len(t, mgr.started, 1) {
		assert.Equal(t, models.KindMarking, mgr.startedKind)
		assert.Equal(t, "2024-01-15", mgr.started[0].Date)
		assert.Equal(t, task.MarkingInfo, mgr.started[0].Mode)
	}

	// Starting an analysis flips the archive status
	info, err := store.Get("arch-1")
	assert.NoError(t, err)
	assert.Equal(t, "analyzing", info.Status)
}

func TestAnalysisHandler_StartAnalysisValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		errCode string
	}{
		{
			name:    "missing archive id",
			body:    `{"kind":"support","date":"2024-01-15"}`,
			errCode: "VALIDATION_ERROR",
		},
		{
			name:    "missing date",
			body:    `{"archiveId":"arch-1","kind":"support"}`,
			errCode: "VALIDATION_ERROR",
		},
		{
			name:    "unknown kind",
			body:    `{"archiveId":"arch-1","kind":"firmware","date":"2024-01-15"}`,
			errCode: "VALIDATION_ERROR",
		},
		{
			name:    "unknown marking mode",
			body:    `{"archiveId":"arch-1","kind":"marking","date":"2024-01-15","mode":"everything"}`,
			errCode: "VALIDATION_ERROR",
		},
		{
			name:    "unknown scan engine",
			body:    `{"archiveId":"arch-1","kind":"marking","date":"2024-01-15","engine":"printer"}`,
			errCode: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			store := testutil.NewMockStorage()
			store.AddArchive("arch-1", "export.zip", "/tmp/arch-1.zip")
			h := NewAnalysisHandler(store, &mockTaskManager{}, nil)

			c, _ := newAnalysisContext(e, http.MethodPost, "/api/analysis", tt.body)
			err := h.HandleStartAnalysis(c)
			assert.Error(t, err)
			apiErr, ok := err.(*APIError)
			if assert.True(t, ok, "expected APIError, got %T", err) {
				assert.Equal(t, tt.errCode, apiErr.Code)
			}
		})
	}
}

func TestAnalysisHandler_StartAnalysisUnknownArchive(t *testing.T) {
	e := echo.New()
	h := NewAnalysisHandler(testutil.NewMockStorage(), &mockTaskManager{}, nil)

	c, _ := newAnalysisContext(e, http.MethodPost, "/api/analysis",
		`{"archiveId":"missing","kind":"support","date":"2024-01-15"}`)

	err := h.HandleStartAnalysis(c)
	assert.Error(t, err)
	apiErr, ok := err.(*APIError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	}
}

func TestAnalysisHandler_TaskStatus(t *testing.T) {
	e := echo.New()
	mgr := &mockTaskManager{
		task: &models.AnalysisTask{
			ID:       "task-1",
			Status:   models.TaskStatusRunning,
			Stage:    models.StageParsing,
			Progress: 55,
		},
	}
	h := NewAnalysisHandler(testutil.NewMockStorage(), mgr, nil)

	c, rec := newAnalysisContext(e, http.MethodGet, "/api/analysis/task-1/status", "")
	c.SetParamNames("id")
	c.SetParamValues("task-1")

	if assert.NoError(t, h.HandleTaskStatus(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"stage":"parsing"`)
	}
}

func TestAnalysisHandler_TaskStatusNotFound(t *testing.T) {
	e := echo.New()
	mgr := &mockTaskManager{getErr: task.ErrTaskNotFound}
	h := NewAnalysisHandler(testutil.NewMockStorage(), mgr, nil)

	c, _ := newAnalysisContext(e, http.MethodGet, "/api/analysis/missing/status", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.HandleTaskStatus(c)
	assert.Error(t, err)
	apiErr, ok := err.(*APIError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	}
}

func TestAnalysisHandler_TaskResult(t *testing.T) {
	e := echo.New()
	mgr := &mockTaskManager{
		result: &task.Result{
			Records: []models.Record{
				models.LogEntry{Timestamp: "10:15:30.123", LogType: "ERROR", Content: "printer offline"},
			},
			Text:   "АНАЛИЗ ЛОГОВ: 1 запись",
			Export: "полный дамп",
		},
	}
	h := NewAnalysisHandler(testutil.NewMockStorage(), mgr, nil)

	c, rec := newAnalysisContext(e, http.MethodGet, "/api/analysis/task-1/result", "")
	c.SetParamNames("id")
	c.SetParamValues("task-1")

	if assert.NoError(t, h.HandleTaskResult(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "printer offline")
		assert.Contains(t, rec.Body.String(), "АНАЛИЗ ЛОГОВ")
	}
}

func TestAnalysisHandler_TaskResultNotComplete(t *testing.T) {
	e := echo.New()
	mgr := &mockTaskManager{resultErr: task.ErrTaskNotComplete}
	h := NewAnalysisHandler(testutil.NewMockStorage(), mgr, nil)

	c, _ := newAnalysisContext(e, http.MethodGet, "/api/analysis/task-1/result", "")
	c.SetParamNames("id")
	c.SetParamValues("task-1")

	err := h.HandleTaskResult(c)
	assert.Error(t, err)
	apiErr, ok := err.(*APIError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusConflict, apiErr.Status)
		assert.Equal(t, "CONFLICT", apiErr.Code)
	}
}

func TestAnalysisHandler_TaskRecordsMsgpack(t *testing.T) {
	e := echo.New()
	mgr := &mockTaskManager{
		result: &task.Result{
			Records: []models.Record{
				models.LogEntry{Timestamp: "10:15:30.123", LogType: "ERROR", Content: "printer offline"},
				models.LogEntry{Timestamp: "10:20:45.999", LogType: "WARNING", Content: "paper low"},
			},
		},
	}
	h := NewAnalysisHandler(testutil.NewMockStorage(), mgr, nil)

	c, rec := newAnalysisContext(e, http.MethodGet, "/api/analysis/task-1/records/msgpack", "")
	c.SetParamNames("id")
	c.SetParamValues("task-1")

	if assert.NoError(t, h.HandleTaskRecordsMsgpack(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/x-msgpack", rec.Header().Get(echo.HeaderContentType))

		var rows [][]string
		err := msgpack.Unmarshal(rec.Body.Bytes(), &rows)
		assert.NoError(t, err)
		if assert.Len(t, rows, 2) {
			assert.Equal(t, []string{"10:15:30.123", "ERROR", "printer offline"}, rows[0])
		}
	}
}

func TestAnalysisHandler_TaskExport(t *testing.T) {
	e := echo.New()
	mgr := &mockTaskManager{
		result: &task.Result{Export: "============\nдамп анализа\n"},
	}
	h := NewAnalysisHandler(testutil.NewMockStorage(), mgr, nil)

	c, rec := newAnalysisContext(e, http.MethodGet, "/api/analysis/task-1/export", "")
	c.SetParamNames("id")
	c.SetParamValues("task-1")

	if assert.NoError(t, h.HandleTaskExport(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "analysis_task-1.txt")
		assert.Contains(t, rec.Body.String(), "дамп анализа")
	}
}

func TestAnalysisHandler_CancelTask(t *testing.T) {
	e := echo.New()
	mgr := &mockTaskManager{}
	h := NewAnalysisHandler(testutil.NewMockStorage(), mgr, nil)

	c, rec := newAnalysisContext(e, http.MethodDelete, "/api/analysis/task-1", "")
	c.SetParamNames("id")
	c.SetParamValues("task-1")

	if assert.NoError(t, h.HandleCancelTask(c)) {
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, []string{"task-1"}, mgr.cancelled)
}

func TestAnalysisHandler_RuleSetDefaultCodes(t *testing.T) {
	ruleSet := &rules.RuleSet{
		Name:       "store defaults",
		UseCustom:  true,
		EventCodes: []string{"500", "600"},
	}

	t.Run("applied when request has none", func(t *testing.T) {
		e := echo.New()
		store := testutil.NewMockStorage()
		store.AddArchive("arch-1", "export.zip", "/tmp/arch-1.zip")
		mgr := &mockTaskManager{}
		h := NewAnalysisHandler(store, mgr, ruleSet)

		c, _ := newAnalysisContext(e, http.MethodPost, "/api/analysis",
			`{"archiveId":"arch-1","kind":"os_events","date":"2024-01-15"}`)
		assert.NoError(t, h.HandleStartAnalysis(c))
		if assert.Len(t, mgr.started, 1) {
			assert.True(t, mgr.started[0].UseCustomCodes)
			assert.Equal(t, []string{"500", "600"}, mgr.started[0].CustomCodes)
		}
	})

	t.Run("request codes win", func(t *testing.T) {
		e := echo.New()
		store := testutil.NewMockStorage()
		store.AddArchive("arch-1", "export.zip", "/tmp/arch-1.zip")
		mgr := &mockTaskManager{}
		h := NewAnalysisHandler(store, mgr, ruleSet)

		c, _ := newAnalysisContext(e, http.MethodPost, "/api/analysis",
			`{"archiveId":"arch-1","kind":"os_events","date":"2024-01-15","customCodes":["41"],"useCustomCodes":true}`)
		assert.NoError(t, h.HandleStartAnalysis(c))
		if assert.Len(t, mgr.started, 1) {
			assert.Equal(t, []string{"41"}, mgr.started[0].CustomCodes)
		}
	})
}
