package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/repo"
)

// PipelineJanitorJob closes pipeline runs abandoned by a crashed worker and
// trims old finished queue entries.
type PipelineJanitorJob struct {
	runs        *repo.PipelineRunRepo
	jobs        *repo.JobRepo
	staleAfter  time.Duration
	keepHistory time.Duration
}

func NewPipelineJanitorJob(runs *repo.PipelineRunRepo, jobs *repo.JobRepo) *PipelineJanitorJob {
	return &PipelineJanitorJob{
		runs:        runs,
		jobs:        jobs,
		staleAfter:  2 * time.Hour,
		keepHistory: 7 * 24 * time.Hour,
	}
}

func (j *PipelineJanitorJob) Name() string {
	return "pipeline_janitor"
}

func (j *PipelineJanitorJob) Run(ctx context.Context) error {
	now := time.Now()
	stale, err := j.runs.FailStaleRunning(ctx, now.Add(-j.staleAfter).Unix(), now.Unix())
	if err != nil {
		return err
	}
	if stale > 0 {
		logutil.GetLogger(ctx).Warn("abandoned pipeline runs closed", zap.Int64("count", stale))
	}
	trimmed, err := j.jobs.DeleteFinishedBefore(ctx, now.Add(-j.keepHistory).Unix())
	if err != nil {
		return err
	}
	if trimmed > 0 {
		logutil.GetLogger(ctx).Info("finished jobs trimmed", zap.Int64("count", trimmed))
	}
	return nil
}
