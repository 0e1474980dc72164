// Package record defines the persisted outcome of a processed request and the
// Store interface implemented by pgstore and memstore. Original request text
// and entity values never enter this package in cleartext; only their SHA-256
// hashes are stored.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

// ErrNotFound is returned when no processed request exists for a job id.
var ErrNotFound = errors.New("processed request not found")

// ProcessedRequest is the per-job row written by the persist stage and
// completed by the consolidate stage.
type ProcessedRequest struct {
	JobID          string
	Protocol       string
	RequesterID    string
	TextHash       string
	AnonymizedText string
	TotalEntities  int
	EntityCounts   map[detect.Kind]int
	RiskLevel      detect.RiskLevel
	CreatedAt      time.Time
	ProcessedAt    time.Time
	ElapsedMS      int64
	Audit          json.RawMessage
	Summary        *summary.Summary
}

// DetectedEntity records one detected occurrence. ValueHash is the SHA-256 of
// the matched text; the cleartext value is discarded before this type is built.
type DetectedEntity struct {
	JobID      string
	Kind       detect.Kind
	ValueHash  string
	Confidence float64
	Start      int
	End        int
	Method     detect.Method
	CreatedAt  time.Time
}

// Completion carries the consolidation-stage fields written onto an existing
// ProcessedRequest row.
type Completion struct {
	ElapsedMS int64
	Audit     json.RawMessage
	Summary   *summary.Summary
}

// Store persists processed requests and their entities. Implementations must
// be safe for concurrent use.
type Store interface {
	// SaveDetection writes the request row and its entity rows atomically.
	SaveDetection(ctx context.Context, req *ProcessedRequest, entities []DetectedEntity) error

	// CompleteRequest writes the consolidation fields onto the existing row.
	// Returns ErrNotFound when no row exists for the job id.
	CompleteRequest(ctx context.Context, jobID string, c Completion) error

	// GetByJobID retrieves the request row and its entities.
	// Returns ErrNotFound when no row exists for the job id.
	GetByJobID(ctx context.Context, jobID string) (*ProcessedRequest, []DetectedEntity, error)
}

// NewDetection converts a detection result into its storable form, hashing the
// original text and every entity value. This is the only path from detection
// output into the Store, so nothing cleartext can leak past it.
func NewDetection(jobID, protocol, requesterID, text string, res *detect.Result, now time.Time) (*ProcessedRequest, []DetectedEntity) {
	req := &ProcessedRequest{
		JobID:          jobID,
		Protocol:       protocol,
		RequesterID:    requesterID,
		TextHash:       detect.HashText(text),
		AnonymizedText: res.AnonymizedText,
		TotalEntities:  len(res.Entities),
		EntityCounts:   res.EntityCounts,
		RiskLevel:      res.RiskLevel,
		CreatedAt:      now,
		ProcessedAt:    now,
	}

	entities := make([]DetectedEntity, 0, len(res.Entities))
	for _, e := range res.Entities {
		entities = append(entities, DetectedEntity{
			JobID:      jobID,
			Kind:       e.Kind,
			ValueHash:  detect.HashText(e.Value),
			Confidence: e.Confidence,
			Start:      e.Start,
			End:        e.End,
			Method:     e.Method,
			CreatedAt:  now,
		})
	}
	return req, entities
}
