package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
)

// ErrQueueFull is returned by Submit when the job queue is at capacity.
var ErrQueueFull = errors.New("job queue full")

// ErrPoolClosed is returned by Submit after Close has been called.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool executes pipeline runs on a fixed set of workers. Each worker handles
// one job at a time; the detection and summarization dependencies are memory-
// heavy, so scaling happens by adding workers, not per-worker concurrency.
type Pool struct {
	pipeline *Pipeline
	logger   log.Logger

	jobs chan Input
	g    *errgroup.Group

	mu     sync.Mutex
	closed bool
}

// NewPool creates a Pool with the given worker count and queue capacity and
// starts its workers. Jobs run under ctx detached from any per-request
// cancellation; call Close to drain and stop.
func NewPool(ctx context.Context, p *Pipeline, workers, queueSize int, logger log.Logger) *Pool {
	if logger == nil {
		logger = log.Nop()
	}
	w := &Pool{
		pipeline: p,
		logger:   logger,
		jobs:     make(chan Input, queueSize),
		g:        &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		w.g.Go(func() error {
			w.work(ctx)
			return nil
		})
	}
	return w
}

// Submit enqueues a job without blocking. The caller has already published the
// queued status; execution starts when a worker picks the job up.
func (w *Pool) Submit(in Input) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrPoolClosed
	}
	select {
	case w.jobs <- in:
		if w.pipeline.metrics != nil {
			w.pipeline.metrics.QueueDepth.Set(float64(len(w.jobs)))
		}
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs, lets workers drain the queue, and waits for
// in-flight runs to finish.
func (w *Pool) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	w.g.Wait() //nolint:errcheck // workers never return errors
}

func (w *Pool) work(ctx context.Context) {
	for in := range w.jobs {
		if w.pipeline.metrics != nil {
			w.pipeline.metrics.QueueDepth.Set(float64(len(w.jobs)))
		}
		if err := w.pipeline.Run(ctx, in); err != nil {
			w.logger.Error(ctx, err, "pipeline run failed", "job_id", in.JobID)
		}
	}
}
