// Package job defines the pipeline job state machine and the status sink
// interface through which progress is published and queried.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is the workflow state of a job. The happy path runs queued through
// finished; error is terminal and may be entered from any stage.
type Status string

const (
	StatusQueued            Status = "queued"
	StatusDetecting         Status = "detecting"
	StatusDetected          Status = "detected"
	StatusSaving            Status = "saving"
	StatusGeneratingSummary Status = "generating_summary"
	StatusSaved             Status = "saved"
	StatusSummaryGenerated  Status = "summary_generated"
	StatusFinished          Status = "finished"
	StatusError             Status = "error"
)

// Steps recorded on terminal error statuses.
const (
	StepDetectionFailed        = "detection_failed"
	StepOutputGenerationFailed = "output_generation_failed"
)

// ErrNotFound is returned by sinks when no live entry exists for a job id,
// either because the id is unknown or the entry expired.
var ErrNotFound = errors.New("job not found")

// Job is the externally visible state of one pipeline run. Result carries the
// consolidated audit record once the job finishes; it never contains original
// request text.
type Job struct {
	ID        string          `json:"job_id"`
	Status    Status          `json:"status"`
	Step      string          `json:"step,omitempty"`
	Progress  int             `json:"progress"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StatusSink stores job state keyed by job id with a fixed retention window.
// Publish overwrites any previous entry and resets the window. Implementations
// must be safe for concurrent use.
type StatusSink interface {
	Publish(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
}
