// Package task runs analysis requests as background tasks. Each task
// owns one extraction workspace, reports coarse progress milestones, and
// is polled through the API until complete.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pos-insight/backend/internal/analyzer"
	"github.com/pos-insight/backend/internal/archive"
	"github.com/pos-insight/backend/internal/models"
	"github.com/pos-insight/backend/internal/report"
)

// ErrTaskNotFound means no task with the given ID is tracked.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskNotComplete means the task has not produced a result yet.
var ErrTaskNotComplete = errors.New("task not complete")

// MaxTasks limits retained tasks to bound memory.
const MaxTasks = 20

// TaskMaxAge is how long completed tasks are kept before cleanup.
const TaskMaxAge = 30 * time.Minute

// MarkingMode selects one of the five marking extraction modes.
type MarkingMode string

const (
	MarkingScans       MarkingMode = "scans"
	MarkingInfo        MarkingMode = "info"
	MarkingConnection  MarkingMode = "connection"
	MarkingCredentials MarkingMode = "credentials"
	MarkingOpening     MarkingMode = "opening"
)

// Options carries the per-domain analysis options. They are copied into
// the task at creation and never mutated afterwards.
type Options struct {
	Date string

	// Support
	IncludeWarnings bool
	Receipts        bool

	// Marking
	Engine analyzer.ScanEngine
	Mode   MarkingMode

	// OS events
	CustomCodes    []string
	UseCustomCodes bool
}

// Result is the completed output of one analysis task.
type Result struct {
	Records []models.Record `json:"records"`
	Text    string          `json:"text"`
	Export  string          `json:"export"`
}

type taskState struct {
	Task     *models.AnalysisTask
	Result   *Result
	cancel   context.CancelFunc
	finished time.Time
}

// Manager handles active analysis tasks.
type Manager struct {
	mu      sync.RWMutex
	tasks   map[string]*taskState
	tempDir string
	log     *slog.Logger
}

// NewManager creates a task manager extracting workspaces under tempDir.
func NewManager(tempDir string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		tasks:   make(map[string]*taskState),
		tempDir: tempDir,
		log:     log.With("component", "tasks"),
	}
}

// StartAnalysis begins a background analysis of the archive at
// archivePath and returns the pending task for polling.
func (m *Manager) StartAnalysis(archiveID, archivePath string, kind models.AnalysisKind, opts Options) (*models.AnalysisTask, error) {
	if !analyzer.ValidDate(opts.Date) {
		return nil, fmt.Errorf("invalid target date %q, want YYYY-MM-DD", opts.Date)
	}
	m.cleanupOldTasksIfNeeded()

	taskID := uuid.New().String()
	t := models.NewAnalysisTask(taskID, archiveID, kind)
	t.StartTime = time.Now().UnixMilli()

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.tasks[taskID] = &taskState{Task: t, cancel: cancel}
	m.mu.Unlock()

	go m.run(ctx, taskID, archivePath, kind, opts)

	return t, nil
}

// GetTask returns the current snapshot of a task.
func (m *Manager) GetTask(taskID string) (*models.AnalysisTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	snapshot := *state.Task
	return &snapshot, nil
}

// GetResult returns the result of a completed task.
func (m *Manager) GetResult(taskID string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if state.Task.Status != models.TaskStatusComplete {
		return nil, fmt.Errorf("%w: task %s is %s", ErrTaskNotComplete, taskID, state.Task.Status)
	}
	return state.Result, nil
}

// Cancel abandons a running task. The workspace is still cleaned up by
// the task goroutine's deferred cleanup.
func (m *Manager) Cancel(taskID string) error {
	m.mu.RLock()
	state, ok := m.tasks[taskID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	state.cancel()
	return nil
}

func (m *Manager) run(ctx context.Context, taskID, archivePath string, kind models.AnalysisKind, opts Options) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("analysis panicked", "task", taskID, "panic", r)
			m.fail(taskID, fmt.Sprintf("analysis panicked: %v", r))
		}
	}()

	start := time.Now()
	extractor := archive.NewExtractor(m.tempDir, m.log)
	defer func() {
		if err := extractor.Cleanup(); err != nil {
			m.log.Error("workspace cleanup failed", "task", taskID, "err", err)
		}
	}()

	m.setStage(taskID, models.StageExtracting, 5)
	workspace, err := extractor.Extract(ctx, archivePath)
	if err != nil {
		m.fail(taskID, err.Error())
		return
	}
	if ctx.Err() != nil {
		m.fail(taskID, "analysis cancelled")
		return
	}

	m.setStage(taskID, models.StageLocating, 30)
	result, skips, err := m.analyze(taskID, workspace, kind, opts)
	if err != nil {
		m.fail(taskID, err.Error())
		return
	}
	if ctx.Err() != nil {
		m.fail(taskID, "analysis cancelled")
		return
	}

	m.setStage(taskID, models.StageFormatting, 90)
	elapsed := time.Since(start).Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.tasks[taskID]
	if !ok {
		return
	}
	state.Result = result
	state.Task.Status = models.TaskStatusComplete
	state.Task.Stage = models.StageDone
	state.Task.Progress = 100
	state.Task.RecordCount = len(result.Records)
	state.Task.ProcessingTimeMs = elapsed
	state.Task.EndTime = time.Now().UnixMilli()
	state.Task.Skips = skips
	state.finished = time.Now()

	m.log.Info("analysis complete", "task", taskID, "kind", kind,
		"records", len(result.Records), "ms", elapsed)
}

// analyze dispatches to the domain analyzers. A locator miss is a
// normal outcome: the result carries zero records and the domain's
// explicit empty text.
func (m *Manager) analyze(taskID, workspace string, kind models.AnalysisKind, opts Options) (*Result, []models.ParseSkip, error) {
	now := time.Now()

	switch kind {
	case models.KindSupport:
		logDir, err := archive.Locate(workspace, opts.Date)
		if errors.Is(err, archive.ErrNotFound) {
			return emptyResult(kind, now), nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		m.setStage(taskID, models.StageParsing, 55)
		return m.analyzeSupport(logDir, opts, now), nil, nil

	case models.KindMarking:
		logDir, err := archive.Locate(workspace, opts.Date)
		if errors.Is(err, archive.ErrNotFound) {
			return emptyResult(kind, now), nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		m.setStage(taskID, models.StageParsing, 55)
		return m.analyzeMarking(logDir, opts, now)

	case models.KindOSEvents:
		sysDir, err := archive.LocateSystemInfo(workspace)
		if errors.Is(err, archive.ErrNotFound) {
			return emptyResult(kind, now), nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		m.setStage(taskID, models.StageParsing, 55)
		return m.analyzeOSEvents(sysDir, opts, now), nil, nil

	case models.KindPaymentTerminal:
		vendorDir, err := archive.LocateVendorDir(workspace)
		if errors.Is(err, archive.ErrNotFound) {
			return emptyResult(kind, now), nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		m.setStage(taskID, models.StageParsing, 55)
		return m.analyzePayment(vendorDir, opts, now), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown analysis kind: %s", kind)
	}
}

func (m *Manager) analyzeSupport(logDir string, opts Options, now time.Time) *Result {
	a := analyzer.NewSupportAnalyzer(m.log)

	if opts.Receipts {
		operations := a.AnalyzeReceiptOperations(logDir)
		records := make([]models.Record, 0, len(operations))
		for _, op := range operations {
			records = append(records, op)
		}
		return &Result{
			Records: records,
			Text:    report.FormatReceiptOperations(operations),
			Export:  report.ExportTable("ОПЕРАЦИИ С ЧЕКАМИ", report.HeaderReceipts, records, now),
		}
	}

	analysis := a.GeneralAnalysis(logDir, opts.IncludeWarnings)
	records := make([]models.Record, 0, len(analysis.Entries))
	for _, e := range analysis.Entries {
		records = append(records, e)
	}
	return &Result{
		Records: records,
		Text:    report.FormatGeneralAnalysis(analysis),
		Export:  report.ExportGeneralAnalysis(analysis, now),
	}
}

func (m *Manager) analyzeMarking(logDir string, opts Options, now time.Time) (*Result, []models.ParseSkip, error) {
	a := analyzer.NewMarkingAnalyzer(m.log)

	switch opts.Mode {
	case MarkingScans, "":
		results := a.AnalyzeScans(logDir, opts.Engine)
		return &Result{
			Records: toRecords(results),
			Text:    report.FormatScans(results),
			Export:  report.ExportTable("СКАНИРОВАНИЯ МАРКИРОВКИ", report.HeaderScans, toRecords(results), now),
		}, nil, nil
	case MarkingInfo:
		results, skips := a.AnalyzeMarkingInfo(logDir)
		return &Result{
			Records: toRecords(results),
			Text:    report.FormatMarkingInfo(results),
			Export:  report.ExportTable("ИНФОРМАЦИЯ ПО КМ", report.HeaderMarkingInfo, toRecords(results), now),
		}, skips, nil
	case MarkingConnection:
		results := a.AnalyzeConnectionIssues(logDir)
		return &Result{
			Records: toRecords(results),
			Text:    report.FormatConnectionIssues(results),
			Export:  report.ExportTable("ПРОБЛЕМЫ ПОДКЛЮЧЕНИЯ", report.HeaderConnection, toRecords(results), now),
		}, nil, nil
	case MarkingCredentials:
		results := a.AnalyzeLoginPassword(logDir)
		return &Result{
			Records: toRecords(results),
			Text:    report.FormatLoginPassword(results),
			Export:  report.ExportTable("ДАННЫЕ АВТОРИЗАЦИИ", report.HeaderCredentials, toRecords(results), now),
		}, nil, nil
	case MarkingOpening:
		results, skips := a.AnalyzeOpeningCheck(logDir)
		return &Result{
			Records: toRecords(results),
			Text:    report.FormatOpeningCheck(results),
			Export:  report.ExportTable("ПРОВЕРКА ВСКРЫТИЯ", report.HeaderOpening, toRecords(results), now),
		}, skips, nil
	default:
		return nil, nil, fmt.Errorf("unknown marking mode: %s", opts.Mode)
	}
}

func (m *Manager) analyzeOSEvents(sysDir string, opts Options, now time.Time) *Result {
	a := analyzer.NewOSEventAnalyzer(m.log)
	a.SetCustomPatterns(opts.CustomCodes, opts.UseCustomCodes)

	appEvents, sysEvents := a.AnalyzeOSLogs(sysDir)
	records := make([]models.Record, 0, len(appEvents)+len(sysEvents))
	for _, ev := range appEvents {
		records = append(records, ev)
	}
	for _, ev := range sysEvents {
		records = append(records, ev)
	}

	return &Result{
		Records: records,
		Text:    report.FormatOSEvents(appEvents, sysEvents, a.ActiveCodes(), opts.UseCustomCodes),
		Export:  report.ExportTable("АНАЛИЗ ЖУРНАЛОВ ОС WINDOWS", report.HeaderOSEvents, records, now),
	}
}

func (m *Manager) analyzePayment(vendorDir string, opts Options, now time.Time) *Result {
	a := analyzer.NewPaymentAnalyzer(m.log)
	drivers := a.DetectDrivers(vendorDir)

	var records []models.Record
	var sections []string
	sections = append(sections, report.FormatDrivers(drivers))

	for _, d := range drivers {
		dir := vendorDirFor(vendorDir, d.DriverName)
		switch d.DriverType {
		case models.DriverINPAS:
			txs := a.AnalyzeInpasDriver(dir, opts.Date)
			records = append(records, toRecords(txs)...)
			sections = append(sections, report.FormatInpasTransactions(txs))
		case models.DriverSberbank, models.DriverSC552:
			txs := a.AnalyzeSberbankDriver(dir, opts.Date)
			records = append(records, toRecords(txs)...)
			sections = append(sections, report.FormatSberbankTransactions(txs))
		}
	}

	text := ""
	for i, s := range sections {
		if i > 0 {
			text += "\n\n"
		}
		text += s
	}
	return &Result{
		Records: records,
		Text:    text,
		Export:  report.RunHeader("АНАЛИЗ ПЛАТЕЖНЫХ ТЕРМИНАЛОВ", now) + text,
	}
}

// emptyResult renders the "nothing for this date" outcome: zero records
// with the domain's explicit empty text.
func emptyResult(kind models.AnalysisKind, now time.Time) *Result {
	var text string
	switch kind {
	case models.KindSupport:
		text = "Записей логов не найдено"
	case models.KindMarking:
		text = "Логи маркировки за указанную дату не найдены"
	case models.KindOSEvents:
		text = report.FormatOSEvents(nil, nil, analyzer.DefaultEventCodes, false)
	case models.KindPaymentTerminal:
		text = "Драйверы терминалов не найдены"
	}
	return &Result{
		Records: []models.Record{},
		Text:    text,
		Export:  report.RunHeader("РЕЗУЛЬТАТ АНАЛИЗА", now) + text,
	}
}

func (m *Manager) setStage(taskID string, stage models.TaskStage, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.tasks[taskID]; ok {
		state.Task.Status = models.TaskStatusRunning
		state.Task.Stage = stage
		state.Task.Progress = progress
	}
}

func (m *Manager) fail(taskID, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.tasks[taskID]; ok {
		state.Task.Status = models.TaskStatusError
		state.Task.Error = msg
		state.Task.EndTime = time.Now().UnixMilli()
		state.finished = time.Now()
	}
}

// cleanupOldTasksIfNeeded drops finished tasks past their age, and the
// oldest finished ones when the task map is full.
func (m *Manager) cleanupOldTasksIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, state := range m.tasks {
		if !state.finished.IsZero() && time.Since(state.finished) > TaskMaxAge {
			delete(m.tasks, id)
		}
	}
	if len(m.tasks) < MaxTasks {
		return
	}
	var oldestID string
	var oldest time.Time
	for id, state := range m.tasks {
		if state.finished.IsZero() {
			continue
		}
		if oldestID == "" || state.finished.Before(oldest) {
			oldestID, oldest = id, state.finished
		}
	}
	if oldestID != "" {
		delete(m.tasks, oldestID)
	}
}

func toRecords[T models.Record](items []T) []models.Record {
	records := make([]models.Record, 0, len(items))
	for _, item := range items {
		records = append(records, item)
	}
	return records
}

func vendorDirFor(vendorRoot, driverName string) string {
	return filepath.Join(vendorRoot, driverName)
}
