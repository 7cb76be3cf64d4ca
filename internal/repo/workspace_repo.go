package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/pkg/dbutil"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

type WorkspaceRepo struct {
	db *sql.DB
}

func NewWorkspaceRepo(db *sql.DB) *WorkspaceRepo {
	return &WorkspaceRepo{db: db}
}

func (r *WorkspaceRepo) Create(ctx context.Context, ws *model.Workspace) error {
	data := map[string]interface{}{
		"id":          ws.ID,
		"name":        ws.Name,
		"description": ws.Description,
		"owner_id":    ws.OwnerID,
		"ctime":       ws.Ctime,
		"mtime":       ws.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("workspaces", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetByOwner returns the workspace only if it belongs to ownerID.
func (r *WorkspaceRepo) GetByOwner(ctx context.Context, ownerID, id string) (*model.Workspace, error) {
	const query = `
		SELECT id, name, description, owner_id, ctime, mtime
		FROM workspaces
		WHERE id = $1 AND owner_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, id, ownerID)
	var ws model.Workspace
	if err := row.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.Ctime, &ws.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

func (r *WorkspaceRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Workspace, error) {
	const query = `
		SELECT id, name, description, owner_id, ctime, mtime
		FROM workspaces
		WHERE owner_id = $1
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Workspace
	for rows.Next() {
		var ws model.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.Ctime, &ws.Mtime); err != nil {
			return nil, err
		}
		results = append(results, ws)
	}
	return results, rows.Err()
}

func (r *WorkspaceRepo) Delete(ctx context.Context, ownerID, id string) error {
	const query = `DELETE FROM workspaces WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
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
