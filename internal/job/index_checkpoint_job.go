package job

import (
	"context"

	"github.com/paperbotai/paperbot/internal/vectorindex"
)

// IndexCheckpointJob periodically flushes the resident vector indexes to
// disk so a restart replays little to nothing.
type IndexCheckpointJob struct {
	indexes *vectorindex.Manager
}

func NewIndexCheckpointJob(indexes *vectorindex.Manager) *IndexCheckpointJob {
	return &IndexCheckpointJob{indexes: indexes}
}

func (j *IndexCheckpointJob) Name() string {
	return "index_checkpoint"
}

func (j *IndexCheckpointJob) Run(ctx context.Context) error {
	if j.indexes == nil {
		return nil
	}
	return j.indexes.SaveAll(ctx)
}
