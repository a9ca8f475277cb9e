package models

// TaskStatus represents the status of an analysis task.
type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusComplete TaskStatus = "complete"
	TaskStatusError    TaskStatus = "error"
)

// Task stages, reported at coarse milestones only.
type TaskStage string

const (
	StageExtracting TaskStage = "extracting"
	StageLocating   TaskStage = "locating"
	StageParsing    TaskStage = "parsing"
	StageFormatting TaskStage = "formatting"
	StageDone       TaskStage = "done"
)

// AnalysisTask represents one background analysis request over one
// uploaded archive.
type AnalysisTask struct {
	ID               string       `json:"id"`
	ArchiveID        string       `json:"archiveId"`
	Kind             AnalysisKind `json:"kind"`
	Status           TaskStatus   `json:"status"`
	Stage            TaskStage    `json:"stage"`
	Progress         float64      `json:"progress"` // 0-100
	RecordCount      int          `json:"recordCount,omitempty"`
	ProcessingTimeMs int64        `json:"processingTimeMs,omitempty"`
	StartTime        int64        `json:"startTime,omitempty"` // Unix ms
	EndTime          int64        `json:"endTime,omitempty"`   // Unix ms
	Error            string       `json:"error,omitempty"`
	Skips            []ParseSkip  `json:"skips,omitempty"`
}

// NewAnalysisTask creates a pending task.
func NewAnalysisTask(id, archiveID string, kind AnalysisKind) *AnalysisTask {
	return &AnalysisTask{
		ID:        id,
		ArchiveID: archiveID,
		Kind:      kind,
		Status:    TaskStatusPending,
		Stage:     StageExtracting,
		Skips:     make([]ParseSkip, 0),
	}
}
