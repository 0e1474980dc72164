// Package memstore provides an in-memory implementation of record.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/laredonunes/sigilo-laredo/internal/record"
)

// Store holds processed requests in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	requests map[string]*record.ProcessedRequest // job ID -> request
	entities map[string][]record.DetectedEntity  // job ID -> entities
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		requests: make(map[string]*record.ProcessedRequest),
		entities: make(map[string][]record.DetectedEntity),
	}
}

// SaveDetection stores copies of the request and its entities.
func (s *Store) SaveDetection(_ context.Context, req *record.ProcessedRequest, entities []record.DetectedEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.requests[req.JobID] = &cp
	s.entities[req.JobID] = append([]record.DetectedEntity(nil), entities...)
	return nil
}

// CompleteRequest writes the consolidation fields onto the stored request.
func (s *Store) CompleteRequest(_ context.Context, jobID string, c record.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[jobID]
	if !ok {
		return record.ErrNotFound
	}
	req.ElapsedMS = c.ElapsedMS
	req.Audit = c.Audit
	req.Summary = c.Summary
	return nil
}

// GetByJobID retrieves copies of the request and its entities.
func (s *Store) GetByJobID(_ context.Context, jobID string) (*record.ProcessedRequest, []record.DetectedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[jobID]
	if !ok {
		return nil, nil, record.ErrNotFound
	}
	cp := *req
	return &cp, append([]record.DetectedEntity(nil), s.entities[jobID]...), nil
}
