package repo

import (
	"context"
	"database/sql"

	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

type PipelineRunRepo struct {
	db *sql.DB
}

func NewPipelineRunRepo(db *sql.DB) *PipelineRunRepo {
	return &PipelineRunRepo{db: db}
}

func (r *PipelineRunRepo) Create(ctx context.Context, run *model.PipelineRun) error {
	const query = `
		INSERT INTO pipeline_runs (id, document_id, status, stage, attempt, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.DocumentID, run.Status, run.Stage, run.Attempt, run.ErrorMessage, run.StartedAt, run.CompletedAt)
	return err
}

// SetStage records the stage boundary the run just crossed.
func (r *PipelineRunRepo) SetStage(ctx context.Context, id, stage string) error {
	const query = `UPDATE pipeline_runs SET stage = $1 WHERE id = $2`
	return r.execExpectingRow(ctx, query, stage, id)
}

// Close finalizes the run as completed or failed.
func (r *PipelineRunRepo) Close(ctx context.Context, id, status, errMsg string, completedAt int64) error {
	const query = `UPDATE pipeline_runs SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4`
	return r.execExpectingRow(ctx, query, status, errMsg, completedAt, id)
}

func (r *PipelineRunRepo) ListByDocument(ctx context.Context, documentID string) ([]model.PipelineRun, error) {
	const query = `
		SELECT id, document_id, status, stage, attempt, error_message, started_at, completed_at
		FROM pipeline_runs
		WHERE document_id = $1
		ORDER BY started_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.PipelineRun
	for rows.Next() {
		var run model.PipelineRun
		if err := rows.Scan(&run.ID, &run.DocumentID, &run.Status, &run.Stage, &run.Attempt,
			&run.ErrorMessage, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	return results, rows.Err()
}

// FailStaleRunning force-closes runs stuck in running state since before
// cutoff, typically after a crash mid-pipeline.
func (r *PipelineRunRepo) FailStaleRunning(ctx context.Context, cutoff, now int64) (int64, error) {
	const query = `
		UPDATE pipeline_runs
		SET status = $1, error_message = 'run abandoned', completed_at = $2
		WHERE status = $3 AND started_at < $4
	`
	result, err := r.db.ExecContext(ctx, query, model.RunStatusFailed, now, model.RunStatusRunning, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PipelineRunRepo) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
