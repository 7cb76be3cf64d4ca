package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/model"
)

type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*model.Job)}
}

func (s *memJobStore) Enqueue(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memJobStore) ClaimNext(ctx context.Context, kinds []string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().Unix()
	for _, job := range s.jobs {
		if job.Status != model.JobStatusPending || job.RunAt > now {
			continue
		}
		for _, kind := range kinds {
			if job.Kind == kind {
				job.Status = model.JobStatusRunning
				job.Attempt++
				claimed := *job
				return &claimed, nil
			}
		}
	}
	return nil, nil
}

func (s *memJobStore) Complete(ctx context.Context, id string) error {
	return s.setStatus(id, model.JobStatusCompleted, "")
}

func (s *memJobStore) Retry(ctx context.Context, id, errMsg string, runAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("no such job: %s", id)
	}
	job.Status = model.JobStatusPending
	job.LastError = errMsg
	job.RunAt = runAt
	return nil
}

func (s *memJobStore) Fail(ctx context.Context, id, errMsg string) error {
	return s.setStatus(id, model.JobStatusFailed, errMsg)
}

func (s *memJobStore) setStatus(id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("no such job: %s", id)
	}
	job.Status = status
	if errMsg != "" {
		job.LastError = errMsg
	}
	return nil
}

func (s *memJobStore) get(id string) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type recordingRunner struct {
	mu        sync.Mutex
	processed []string
	reindexed []string
	failTimes int
}

func (r *recordingRunner) ProcessDocument(ctx context.Context, documentID string, attempt int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTimes > 0 {
		r.failTimes--
		return fmt.Errorf("transient failure")
	}
	r.processed = append(r.processed, documentID)
	return nil
}

func (r *recordingRunner) ReindexWorkspace(ctx context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTimes > 0 {
		r.failTimes--
		return fmt.Errorf("transient failure")
	}
	r.reindexed = append(r.reindexed, workspaceID)
	return nil
}

func TestEnqueueIngest(t *testing.T) {
	store := newMemJobStore()
	d := NewDispatcher(store)
	id, err := d.EnqueueIngest(context.Background(), "doc1")
	require.NoError(t, err)

	job := store.get(id)
	assert.Equal(t, model.JobKindIngestDocument, job.Kind)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, defaultMaxAttempts, job.MaxAttempts)
	var payload ingestPayload
	require.NoError(t, json.Unmarshal([]byte(job.Payload), &payload))
	assert.Equal(t, "doc1", payload.DocumentID)
}

func TestPoolProcessesJob(t *testing.T) {
	store := newMemJobStore()
	d := NewDispatcher(store)
	id, err := d.EnqueueIngest(context.Background(), "doc1")
	require.NoError(t, err)

	runner := &recordingRunner{}
	pool := NewPool(store, runner, 1, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		return store.get(id).Status == model.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []string{"doc1"}, runner.processed)
}

func TestPoolRetriesThenFails(t *testing.T) {
	store := newMemJobStore()
	d := NewDispatcher(store)
	id, err := d.EnqueueReindex(context.Background(), "ws1")
	require.NoError(t, err)

	runner := &recordingRunner{failTimes: 1}
	pool := NewPool(store, runner, 1, 5*time.Millisecond)

	ctx := context.Background()
	job, err := store.ClaimNext(ctx, []string{model.JobKindReindexWorkspace})
	require.NoError(t, err)
	require.NotNil(t, job)
	pool.execute(ctx, zap.NewNop(), job)

	stored := store.get(id)
	assert.Equal(t, model.JobStatusPending, stored.Status)
	assert.Contains(t, stored.LastError, "transient failure")
	assert.Greater(t, stored.RunAt, time.Now().Unix())

	// Burn the remaining attempts with a runner that keeps failing.
	runner.failTimes = 10
	for i := 0; i < defaultMaxAttempts-1; i++ {
		stored = store.get(id)
		store.Retry(ctx, id, stored.LastError, time.Now().Unix())
		job, err = store.ClaimNext(ctx, []string{model.JobKindReindexWorkspace})
		require.NoError(t, err)
		require.NotNil(t, job)
		pool.execute(ctx, zap.NewNop(), job)
	}
	assert.Equal(t, model.JobStatusFailed, store.get(id).Status)
}

func TestDispatchUnknownKind(t *testing.T) {
	pool := NewPool(newMemJobStore(), &recordingRunner{}, 1, time.Millisecond)
	err := pool.dispatch(context.Background(), &model.Job{Kind: "bogus", Payload: "{}"})
	assert.Error(t, err)
}
