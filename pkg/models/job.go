package models

import (
	"time"

	"github.com/google/uuid"
)

// Job steps reported in JobProgress.Step.
const (
	StepQueued      = "queued"
	StepCategory    = "category"
	StepFacility    = "facility"
	StepDescription = "description"
	StepSummary     = "summary"
	StepDone        = "done"
	StepFailed      = "failed"
)

// JobProgress is the snapshot a client polls via GET /api/v1/jobs/{job_id}.
// Completed counts rows finished across all stages of the job and never exceeds Total.
type JobProgress struct {
	JobID     uuid.UUID   `json:"job_id"`
	Total     int         `json:"total_items"`
	Completed int         `json:"completed_items"`
	Status    string      `json:"status"`
	Step      string      `json:"step"`
	Done      bool        `json:"completed"`
	Error     *string     `json:"error"`
	Results   *JobResults `json:"results,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
