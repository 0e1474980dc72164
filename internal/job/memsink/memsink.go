// Package memsink provides an in-memory implementation of job.StatusSink.
package memsink

import (
	"context"
	"sync"
	"time"

	"github.com/laredonunes/sigilo-laredo/internal/job"
)

// Sink holds job status in memory with per-entry expiry. Suitable for
// single-process deployments and testing.
type Sink struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	stop chan struct{}
	once sync.Once
}

type entry struct {
	job     job.Job
	expires time.Time
}

// New initializes a Sink whose entries expire ttl after their last Publish.
// A background janitor reclaims expired entries until Close is called.
func New(ttl time.Duration) *Sink {
	s := &Sink{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Publish stores a copy of the job and resets its retention window.
func (s *Sink) Publish(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[j.ID] = entry{job: *j, expires: s.now().Add(s.ttl)}
	return nil
}

// Get retrieves a copy of the job. Expired entries behave as absent.
func (s *Sink) Get(_ context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || s.now().After(e.expires) {
		return nil, job.ErrNotFound
	}
	cp := e.job
	return &cp, nil
}

// Close stops the janitor. Entries already stored remain readable until they
// expire.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Sink) janitor() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			now := s.now()
			s.mu.Lock()
			for id, e := range s.entries {
				if now.After(e.expires) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
