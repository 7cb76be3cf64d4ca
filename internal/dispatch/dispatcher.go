package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/paperbotai/paperbot/internal/model"
)

const defaultMaxAttempts = 3

type JobStore interface {
	Enqueue(ctx context.Context, job *model.Job) error
	ClaimNext(ctx context.Context, kinds []string) (*model.Job, error)
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id, errMsg string, runAt int64) error
	Fail(ctx context.Context, id, errMsg string) error
}

type ingestPayload struct {
	DocumentID string `json:"document_id"`
}

type reindexPayload struct {
	WorkspaceID string `json:"workspace_id"`
}

// Dispatcher enqueues background work on the durable job queue.
type Dispatcher struct {
	jobs JobStore
}

func NewDispatcher(jobs JobStore) *Dispatcher {
	return &Dispatcher{jobs: jobs}
}

func (d *Dispatcher) EnqueueIngest(ctx context.Context, documentID string) (string, error) {
	return d.enqueue(ctx, model.JobKindIngestDocument, ingestPayload{DocumentID: documentID})
}

func (d *Dispatcher) EnqueueReindex(ctx context.Context, workspaceID string) (string, error) {
	return d.enqueue(ctx, model.JobKindReindexWorkspace, reindexPayload{WorkspaceID: workspaceID})
}

func (d *Dispatcher) enqueue(ctx context.Context, kind string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	now := time.Now().Unix()
	job := &model.Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     string(data),
		Status:      model.JobStatusPending,
		MaxAttempts: defaultMaxAttempts,
		RunAt:       now,
		Ctime:       now,
		Mtime:       now,
	}
	if err := d.jobs.Enqueue(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}
