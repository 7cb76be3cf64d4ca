package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/pkg/dbutil"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	meta, err := json.Marshal(metaOrEmpty(entry.Metadata))
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":            entry.ID,
		"user_id":       entry.UserID,
		"action":        entry.Action,
		"resource_type": entry.ResourceType,
		"resource_id":   entry.ResourceID,
		"ip_address":    entry.IPAddress,
		"user_agent":    entry.UserAgent,
		"metadata":      meta,
		"ctime":         entry.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("audit_logs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *AuditRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.AuditLog, error) {
	const query = `
		SELECT id, user_id, action, resource_type, resource_id, ip_address, user_agent, metadata, ctime
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY ctime DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.AuditLog
	for rows.Next() {
		var entry model.AuditLog
		var meta []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.ResourceType,
			&entry.ResourceID, &entry.IPAddress, &entry.UserAgent, &meta, &entry.Ctime); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Metadata); err != nil {
				return nil, err
			}
		}
		results = append(results, entry)
	}
	return results, rows.Err()
}

func (r *AuditRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM audit_logs WHERE ctime < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
