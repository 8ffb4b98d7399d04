package core

import "time"

// Store defines the interface for run-state persistence.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(modelType, environment string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, records int, errMsg string) error
	ListRuns(limit int) ([]*Run, error)

	// Issue operations
	AddIssues(runID string, issues []string) error
	ListIssues(runID string) ([]string, error)
}

// RunStatus represents the status of a generation run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one persisted generation request.
type Run struct {
	ID          string     `json:"id"`
	ModelType   string     `json:"model_type"`
	Environment string     `json:"environment"`
	Status      RunStatus  `json:"status"`
	Records     int        `json:"records"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}
