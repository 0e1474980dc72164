// Package pipeline implements the four-stage processing workflow for one
// submitted request: detect, then persist and summarize concurrently, then
// consolidate into the audit record. Status updates along the way are
// fire-and-forget; only the Record Store write path can fail a job.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/job"
	"github.com/laredonunes/sigilo-laredo/internal/record"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

const (
	persistMaxRetries = 3
	summaryMaxRetries = 2
)

// Detector is the detection capability consumed by stage 1. The production
// engine never returns an error; the error path exists for defects that
// surface outside its fail-safe boundary.
type Detector interface {
	Detect(ctx context.Context, text string) (*detect.Result, error)
}

// DetectorFunc adapts a plain function to Detector.
type DetectorFunc func(ctx context.Context, text string) (*detect.Result, error)

// Detect implements Detector.
func (f DetectorFunc) Detect(ctx context.Context, text string) (*detect.Result, error) {
	return f(ctx, text)
}

// Notification describes a finished high-risk job for outbound alerting. It
// carries counts and timing only, never request text or entity values.
type Notification struct {
	JobID        string
	Protocol     string
	RiskLevel    detect.RiskLevel
	EntityCounts map[detect.Kind]int
	ElapsedMS    int64
	FinishedAt   time.Time
}

// Notifier delivers finished-job notifications to an external channel.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

// Pipeline runs the workflow for one job per Run call. Construct once and
// reuse; all dependencies are shared across runs.
type Pipeline struct {
	detector   Detector
	store      record.Store
	sink       job.StatusSink
	summarizer summary.Summarizer
	notifier   Notifier
	logger     log.Logger
	metrics    *Metrics

	persistRetryDelay time.Duration
	summaryRetryDelay time.Duration
	now               func() time.Time
}

// New creates a Pipeline. summarizer may be nil, in which case every job gets
// the fallback summary. notifier and metrics may be nil.
func New(detector Detector, store record.Store, sink job.StatusSink, summarizer summary.Summarizer, notifier Notifier, logger log.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		detector:          detector,
		store:             store,
		sink:              sink,
		summarizer:        summarizer,
		notifier:          notifier,
		logger:            logger,
		metrics:           metrics,
		persistRetryDelay: 10 * time.Second,
		summaryRetryDelay: 5 * time.Second,
		now:               time.Now,
	}
}

// Run executes the whole workflow for one job. The returned error reports a
// delivery-level failure (persistence retries exhausted or consolidation
// failure); the job's user-visible outcome is already published to the sink
// by the time Run returns.
func (p *Pipeline) Run(ctx context.Context, in Input) error {
	start := p.now().UTC()
	L := p.logger.With("job_id", in.JobID)

	res, err := p.detectStage(ctx, L, in)
	if err != nil {
		return err
	}

	pay := payload{Input: in, Detection: res, StartTime: start}

	var sum *summary.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.persistStage(gctx, L, pay)
	})
	g.Go(func() error {
		sum = p.summarizeStage(gctx, L, pay)
		return nil
	})
	if err := g.Wait(); err != nil {
		if p.metrics != nil {
			p.metrics.JobsTotal.WithLabelValues(string(job.StatusError)).Inc()
		}
		return err
	}

	return p.consolidateStage(ctx, L, pay, sum)
}

// detectStage invokes the detection engine. A failure here is fatal for the
// job and is published as a terminal error.
func (p *Pipeline) detectStage(ctx context.Context, L log.Logger, in Input) (*detect.Result, error) {
	p.publish(ctx, &job.Job{ID: in.JobID, Status: job.StatusDetecting, Step: "detecting", Progress: 25})

	stageStart := p.now()
	res, err := p.detector.Detect(ctx, in.Text)
	p.observeStage("detect", stageStart)
	if err != nil {
		L.Error(ctx, err, "detection failed", "text_hash", detect.HashText(in.Text))
		p.publishError(ctx, in.JobID, job.StepDetectionFailed, err)
		if p.metrics != nil {
			p.metrics.JobsTotal.WithLabelValues(string(job.StatusError)).Inc()
		}
		return nil, fmt.Errorf("detect job %s: %w", in.JobID, err)
	}

	L.Info(ctx, "detection complete",
		"entities", len(res.Entities),
		"risk_level", res.RiskLevel,
	)
	p.publish(ctx, &job.Job{ID: in.JobID, Status: job.StatusDetected, Step: "detected", Progress: 50})
	return res, nil
}

// persistStage writes the detection outcome to the Record Store, retrying on
// any failure. Exhausted retries propagate; the job then never reaches
// finished.
func (p *Pipeline) persistStage(ctx context.Context, L log.Logger, pay payload) error {
	p.publish(ctx, &job.Job{ID: pay.JobID, Status: job.StatusSaving, Step: "saving", Progress: 75})

	req, entities := record.NewDetection(pay.JobID, pay.Protocol, pay.RequesterID, pay.Text, pay.Detection, p.now().UTC())

	stageStart := p.now()
	defer p.observeStage("persist", stageStart)

	var err error
	for attempt := 0; attempt <= persistMaxRetries; attempt++ {
		if attempt > 0 {
			if p.metrics != nil {
				p.metrics.RetriesTotal.WithLabelValues("persist").Inc()
			}
			if serr := sleepCtx(ctx, p.persistRetryDelay); serr != nil {
				return serr
			}
		}
		if err = p.store.SaveDetection(ctx, req, entities); err == nil {
			p.publish(ctx, &job.Job{ID: pay.JobID, Status: job.StatusSaved, Step: "saved", Progress: 85})
			return nil
		}
		L.Error(ctx, err, "record store write failed", "attempt", attempt+1)
	}
	return fmt.Errorf("persist job %s after %d attempts: %w", pay.JobID, persistMaxRetries+1, err)
}

// summarizeStage calls the summarizer, retrying connectivity failures only.
// Every other failure, including exhausted retries, yields the fallback
// summary so the job always proceeds.
func (p *Pipeline) summarizeStage(ctx context.Context, L log.Logger, pay payload) *summary.Summary {
	p.publish(ctx, &job.Job{ID: pay.JobID, Status: job.StatusGeneratingSummary, Step: "generating_summary", Progress: 75})

	stageStart := p.now()
	defer p.observeStage("summarize", stageStart)

	if p.summarizer != nil {
		var err error
		for attempt := 0; attempt <= summaryMaxRetries; attempt++ {
			if attempt > 0 {
				if p.metrics != nil {
					p.metrics.RetriesTotal.WithLabelValues("summarize").Inc()
				}
				if sleepCtx(ctx, p.summaryRetryDelay) != nil {
					break
				}
			}

			var sum *summary.Summary
			sum, err = p.summarizer.Summarize(ctx, pay.Detection.AnonymizedText, pay.Detection.EntityCounts)
			if err == nil {
				p.publish(ctx, &job.Job{ID: pay.JobID, Status: job.StatusSummaryGenerated, Step: "summary_generated", Progress: 85})
				return sum
			}
			if !errors.Is(err, summary.ErrUnreachable) {
				break
			}
		}
		L.Error(ctx, err, "summarization failed, using fallback")
	}

	if p.metrics != nil {
		p.metrics.SummaryFallbacksTotal.Inc()
	}
	p.publish(ctx, &job.Job{ID: pay.JobID, Status: job.StatusSummaryGenerated, Step: "summary_generated", Progress: 85})
	return summary.Fallback()
}

// consolidateStage builds the audit record, publishes the finished status, and
// completes the stored row. A failure here is fatal and user-visible.
func (p *Pipeline) consolidateStage(ctx context.Context, L log.Logger, pay payload, sum *summary.Summary) error {
	stageStart := p.now()
	defer p.observeStage("consolidate", stageStart)

	finishedAt := p.now().UTC()
	elapsed := finishedAt.Sub(pay.StartTime).Milliseconds()

	rec := AuditRecord{
		JobID:          pay.JobID,
		Protocol:       pay.Protocol,
		AnonymizedText: pay.Detection.AnonymizedText,
		Summary:        sum,
		Stats: Stats{
			TotalEntities: len(pay.Detection.Entities),
			ByKind:        pay.Detection.EntityCounts,
			RiskLevel:     pay.Detection.RiskLevel,
		},
		Processing: Processing{ElapsedMS: elapsed, Timestamp: finishedAt},
		Audit: Audit{
			RequesterID: pay.RequesterID,
			StartedAt:   pay.StartTime,
			FinishedAt:  finishedAt,
			Steps:       completedSteps(),
			Compliance:  Compliance{LGPD: true, LocalAI: true},
		},
	}

	if err := p.finish(ctx, pay.JobID, &rec, sum, elapsed); err != nil {
		L.Error(ctx, err, "consolidation failed")
		p.publishError(ctx, pay.JobID, job.StepOutputGenerationFailed, err)
		if p.metrics != nil {
			p.metrics.JobsTotal.WithLabelValues(string(job.StatusError)).Inc()
		}
		return fmt.Errorf("consolidate job %s: %w", pay.JobID, err)
	}

	if p.metrics != nil {
		p.metrics.JobsTotal.WithLabelValues(string(job.StatusFinished)).Inc()
		p.metrics.EntitiesDetected.Observe(float64(len(pay.Detection.Entities)))
		p.metrics.RiskTotal.WithLabelValues(string(pay.Detection.RiskLevel)).Inc()
	}
	L.Info(ctx, "job finished",
		"elapsed_ms", elapsed,
		"entities", len(pay.Detection.Entities),
		"risk_level", pay.Detection.RiskLevel,
	)

	if p.notifier != nil && pay.Detection.RiskLevel == detect.RiskHigh {
		n := &Notification{
			JobID:        pay.JobID,
			Protocol:     pay.Protocol,
			RiskLevel:    pay.Detection.RiskLevel,
			EntityCounts: pay.Detection.EntityCounts,
			ElapsedMS:    elapsed,
			FinishedAt:   finishedAt,
		}
		if err := p.notifier.Send(ctx, n); err != nil {
			L.Error(ctx, err, "high-risk notification failed")
		}
	}
	return nil
}

func (p *Pipeline) finish(ctx context.Context, jobID string, rec *AuditRecord, sum *summary.Summary, elapsed int64) error {
	result, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	auditJSON, err := json.Marshal(rec.Audit)
	if err != nil {
		return fmt.Errorf("marshal audit block: %w", err)
	}

	p.publish(ctx, &job.Job{
		ID:       jobID,
		Status:   job.StatusFinished,
		Step:     "finished",
		Progress: 100,
		Result:   result,
	})

	return p.store.CompleteRequest(ctx, jobID, record.Completion{
		ElapsedMS: elapsed,
		Audit:     auditJSON,
		Summary:   sum,
	})
}

// publish writes a status update to the sink. Failures are logged and never
// fail the owning stage.
func (p *Pipeline) publish(ctx context.Context, j *job.Job) {
	j.UpdatedAt = p.now().UTC()
	if err := p.sink.Publish(ctx, j); err != nil {
		if p.metrics != nil {
			p.metrics.SinkErrorsTotal.Inc()
		}
		p.logger.Error(ctx, err, "status publish failed", "job_id", j.ID, "status", j.Status)
	}
}

func (p *Pipeline) publishError(ctx context.Context, jobID, step string, err error) {
	p.publish(ctx, &job.Job{
		ID:       jobID,
		Status:   job.StatusError,
		Step:     step,
		Progress: 0,
		Error:    err.Error(),
	})
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(p.now().Sub(start).Seconds())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
