// Package boltsink provides a job.StatusSink backed by an embedded bbolt
// database, so job status survives process restarts.
package boltsink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	bolt "go.etcd.io/bbolt"

	"github.com/laredonunes/sigilo-laredo/internal/job"
)

const bucket = "jobs"

// Sink stores serialized jobs in a single bbolt bucket, one entry per job id.
// Each entry carries its own deadline; expired entries behave as absent and
// are reclaimed by a background sweep.
type Sink struct {
	db     *bolt.DB
	ttl    time.Duration
	now    func() time.Time
	logger log.Logger

	stop chan struct{}
}

type record struct {
	Job     job.Job   `json:"job"`
	Expires time.Time `json:"expires"`
}

// Open opens (or creates) the database at path and ensures the bucket exists.
// A nil logger is replaced with a no-op logger.
func Open(path string, ttl time.Duration, logger log.Logger) (*Sink, error) {
	if logger == nil {
		logger = log.Nop()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open status db %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create status bucket: %w", err)
	}

	s := &Sink{
		db:     db,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		stop:   make(chan struct{}),
	}
	go s.sweep()
	return s, nil
}

// Publish stores the job and resets its retention window.
func (s *Sink) Publish(_ context.Context, j *job.Job) error {
	raw, err := json.Marshal(record{Job: *j, Expires: s.now().Add(s.ttl)})
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", j.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(j.ID), raw)
	})
}

// Get retrieves the job. Expired entries return job.ErrNotFound.
func (s *Sink) Get(_ context.Context, id string) (*job.Job, error) {
	var rec record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucket)).Get([]byte(id))
		if raw == nil {
			return job.ErrNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, err
	}
	if s.now().After(rec.Expires) {
		return nil, job.ErrNotFound
	}
	return &rec.Job, nil
}

// Close stops the sweep and closes the database.
func (s *Sink) Close() error {
	close(s.stop)
	return s.db.Close()
}

func (s *Sink) sweep() {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.reclaim()
		}
	}
}

func (s *Sink) reclaim() {
	now := s.now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil || now.After(rec.Expires) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(context.Background(), err, "reclaiming expired job status entries failed")
	}
}
