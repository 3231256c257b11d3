package domain

import "time"

// RunPhase names the top-level pipeline operation.
type RunPhase string

const (
	RunPhaseFetch RunPhase = "fetch"
	RunPhaseLoad  RunPhase = "load"
)

// RunStatus represents the status of a pipeline run.
// Values include RunStatusRunning, RunStatusCompleted, and RunStatusFailed.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun is the ledger record of one fetch or load run.
type PipelineRun struct {
	ID            string     `gorm:"type:text;primaryKey" json:"id"`
	Phase         RunPhase   `gorm:"type:text;not null;index" json:"phase"`
	Status        RunStatus  `gorm:"type:text;not null;default:running;index" json:"status"`
	DocumentTypes int        `gorm:"default:0" json:"document_types"`
	Links         int        `gorm:"default:0" json:"links"`
	Files         int        `gorm:"default:0" json:"files"`
	Documents     int        `gorm:"default:0" json:"documents"`
	Batches       int        `gorm:"default:0" json:"batches"`
	ErrorLog      string     `json:"error_log,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for PipelineRun.
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// BatchRecord is the ledger record of one submitted bulk batch.
type BatchRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RunID        string    `gorm:"type:text;not null;index" json:"run_id"`
	DocumentType string    `gorm:"type:text;not null" json:"document_type"`
	First        int       `json:"first"`
	Last         int       `json:"last"`
	Documents    int       `json:"documents"`
	Bytes        int       `json:"bytes"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// TableName returns the database table name for BatchRecord.
func (BatchRecord) TableName() string {
	return "batch_records"
}
