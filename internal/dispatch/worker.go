package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/paperbotai/paperbot/internal/model"
)

// Runner executes the work a claimed job describes.
type Runner interface {
	ProcessDocument(ctx context.Context, documentID string, attempt int) error
	ReindexWorkspace(ctx context.Context, workspaceID string) error
}

// Pool polls the job queue with a fixed set of workers. A failed delivery
// is rescheduled with a linear backoff until its attempts run out.
type Pool struct {
	jobs         JobStore
	runner       Runner
	workers      int
	pollInterval time.Duration
}

func NewPool(jobs JobStore, runner Runner, workers int, pollInterval time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Pool{jobs: jobs, runner: runner, workers: workers, pollInterval: pollInterval}
}

// Run blocks until ctx is cancelled, then waits for in-flight jobs.
func (p *Pool) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		eg.Go(func() error {
			p.loop(ctx, worker)
			return nil
		})
	}
	return eg.Wait()
}

func (p *Pool) loop(ctx context.Context, worker int) {
	logger := logutil.GetLogger(ctx).With(zap.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, err := p.jobs.ClaimNext(ctx, []string{model.JobKindIngestDocument, model.JobKindReindexWorkspace})
		if err != nil {
			logger.Error("claim job failed", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			p.sleep(ctx)
			continue
		}
		p.execute(ctx, logger, job)
	}
}

func (p *Pool) execute(ctx context.Context, logger *zap.Logger, job *model.Job) {
	logger.Info("job claimed", zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Int("attempt", job.Attempt))
	err := p.dispatch(ctx, job)
	if err == nil {
		if cerr := p.jobs.Complete(ctx, job.ID); cerr != nil {
			logger.Error("complete job failed", zap.String("job_id", job.ID), zap.Error(cerr))
		}
		return
	}
	if job.Attempt < job.MaxAttempts {
		// Linear backoff keyed on how many deliveries the job has burned.
		delay := time.Duration(job.Attempt) * time.Minute
		runAt := time.Now().Add(delay).Unix()
		logger.Warn("job failed, scheduling retry",
			zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Duration("delay", delay), zap.Error(err))
		if rerr := p.jobs.Retry(ctx, job.ID, err.Error(), runAt); rerr != nil {
			logger.Error("retry job failed", zap.String("job_id", job.ID), zap.Error(rerr))
		}
		return
	}
	logger.Error("job failed permanently", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if ferr := p.jobs.Fail(ctx, job.ID, err.Error()); ferr != nil {
		logger.Error("fail job failed", zap.String("job_id", job.ID), zap.Error(ferr))
	}
}

func (p *Pool) dispatch(ctx context.Context, job *model.Job) error {
	switch job.Kind {
	case model.JobKindIngestDocument:
		var payload ingestPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.runner.ProcessDocument(ctx, payload.DocumentID, job.Attempt)
	case model.JobKindReindexWorkspace:
		var payload reindexPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.runner.ReindexWorkspace(ctx, payload.WorkspaceID)
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
}

func (p *Pool) sleep(ctx context.Context) {
	timer := time.NewTimer(p.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
