package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/paperbotai/paperbot/internal/model"
)

// JobRepo is the durable queue behind the background dispatcher. Claiming
// uses FOR UPDATE SKIP LOCKED so multiple workers never double-claim a job;
// delivery is at-least-once.
type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Enqueue(ctx context.Context, job *model.Job) error {
	const query = `
		INSERT INTO jobs (id, kind, payload, status, attempt, max_attempts, run_at, last_error, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Kind, job.Payload, job.Status, job.Attempt, job.MaxAttempts,
		job.RunAt, job.LastError, job.Ctime, job.Mtime)
	return err
}

// ClaimNext atomically claims the oldest due pending job, bumping its
// attempt counter. Returns nil when nothing is due.
func (r *JobRepo) ClaimNext(ctx context.Context, kinds []string) (*model.Job, error) {
	now := time.Now().Unix()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const selectQuery = `
		SELECT id, kind, payload, status, attempt, max_attempts, run_at, last_error, ctime, mtime
		FROM jobs
		WHERE status = $1 AND run_at <= $2 AND kind = ANY($3)
		ORDER BY run_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	row := tx.QueryRowContext(ctx, selectQuery, model.JobStatusPending, now, pq.Array(kinds))
	var job model.Job
	if err := row.Scan(&job.ID, &job.Kind, &job.Payload, &job.Status, &job.Attempt, &job.MaxAttempts,
		&job.RunAt, &job.LastError, &job.Ctime, &job.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	job.Status = model.JobStatusRunning
	job.Attempt++
	job.Mtime = now
	const updateQuery = `UPDATE jobs SET status = $1, attempt = $2, mtime = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, updateQuery, job.Status, job.Attempt, job.Mtime, job.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepo) Complete(ctx context.Context, id string) error {
	const query = `UPDATE jobs SET status = $1, mtime = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, model.JobStatusCompleted, time.Now().Unix(), id)
	return err
}

// Retry reschedules a failed delivery to run again at runAt.
func (r *JobRepo) Retry(ctx context.Context, id, errMsg string, runAt int64) error {
	const query = `UPDATE jobs SET status = $1, last_error = $2, run_at = $3, mtime = $4 WHERE id = $5`
	_, err := r.db.ExecContext(ctx, query, model.JobStatusPending, errMsg, runAt, time.Now().Unix(), id)
	return err
}

// Fail finalizes the job after its attempts are exhausted.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) error {
	const query = `UPDATE jobs SET status = $1, last_error = $2, mtime = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, model.JobStatusFailed, errMsg, time.Now().Unix(), id)
	return err
}

func (r *JobRepo) DeleteFinishedBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM jobs WHERE status IN ($1, $2) AND mtime < $3`
	result, err := r.db.ExecContext(ctx, query, model.JobStatusCompleted, model.JobStatusFailed, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
