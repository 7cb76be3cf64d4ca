package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/pkg/dbutil"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

const documentColumns = `id, workspace_id, title, filename, file_key, file_size, mime_type,
	status, page_count, extracted_text, metadata, error_message, uploaded_by, ctime, mtime, processed_at`

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	meta, err := json.Marshal(metaOrEmpty(doc.Metadata))
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":             doc.ID,
		"workspace_id":   doc.WorkspaceID,
		"title":          doc.Title,
		"filename":       doc.Filename,
		"file_key":       doc.FileKey,
		"file_size":      doc.FileSize,
		"mime_type":      doc.MimeType,
		"status":         doc.Status,
		"page_count":     doc.PageCount,
		"extracted_text": doc.ExtractedText,
		"metadata":       meta,
		"error_message":  doc.ErrorMessage,
		"uploaded_by":    doc.UploadedBy,
		"ctime":          doc.Ctime,
		"mtime":          doc.Mtime,
		"processed_at":   doc.ProcessedAt,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *DocumentRepo) GetByWorkspace(ctx context.Context, workspaceID, id string) (*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND workspace_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, workspaceID))
}

func (r *DocumentRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE workspace_id = $1 ORDER BY ctime DESC`
	return r.scanMany(ctx, query, workspaceID)
}

func (r *DocumentRepo) ListByWorkspaceStatus(ctx context.Context, workspaceID, status string) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE workspace_id = $1 AND status = $2 ORDER BY ctime`
	return r.scanMany(ctx, query, workspaceID, status)
}

// ListByWorkspaceIDs returns documents in a workspace restricted to the given
// ids, keeping only those that completed ingestion.
func (r *DocumentRepo) ListByWorkspaceIDs(ctx context.Context, workspaceID string, ids []string, status string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE workspace_id = ? AND status = ? AND id IN (?) ORDER BY ctime`
	query, args, err := sqlx.In(query, workspaceID, status, ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	return r.scanMany(ctx, query, args...)
}

// UpdateStatus moves the document to the given lifecycle status.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE documents SET status = $1, mtime = $2 WHERE id = $3`
	return r.execExpectingRow(ctx, query, status, time.Now().Unix(), id)
}

// SaveExtracted persists stage-1 output together with the status change.
func (r *DocumentRepo) SaveExtracted(ctx context.Context, id, text string, pageCount int, metadata map[string]interface{}) error {
	meta, err := json.Marshal(metaOrEmpty(metadata))
	if err != nil {
		return err
	}
	const query = `
		UPDATE documents
		SET extracted_text = $1, page_count = $2, metadata = $3, status = $4, mtime = $5
		WHERE id = $6
	`
	return r.execExpectingRow(ctx, query, text, pageCount, meta, model.DocStatusExtracted, time.Now().Unix(), id)
}

// MarkIndexed closes a successful pipeline pass.
func (r *DocumentRepo) MarkIndexed(ctx context.Context, id string, processedAt int64) error {
	const query = `
		UPDATE documents
		SET status = $1, error_message = '', processed_at = $2, mtime = $3
		WHERE id = $4
	`
	return r.execExpectingRow(ctx, query, model.DocStatusIndexed, processedAt, time.Now().Unix(), id)
}

// MarkFailed records the terminal failure state with its error message.
func (r *DocumentRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	const query = `UPDATE documents SET status = $1, error_message = $2, mtime = $3 WHERE id = $4`
	return r.execExpectingRow(ctx, query, model.DocStatusFailed, errMsg, time.Now().Unix(), id)
}

func (r *DocumentRepo) Delete(ctx context.Context, workspaceID, id string) error {
	const query = `DELETE FROM documents WHERE id = $1 AND workspace_id = $2`
	return r.execExpectingRow(ctx, query, id, workspaceID)
}

func (r *DocumentRepo) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
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

func (r *DocumentRepo) scanOne(row *sql.Row) (*model.Document, error) {
	doc, err := scanDocument(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepo) scanMany(ctx context.Context, query string, args ...interface{}) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, *doc)
	}
	return results, rows.Err()
}

func scanDocument(scan func(dest ...interface{}) error) (*model.Document, error) {
	var doc model.Document
	var meta []byte
	if err := scan(
		&doc.ID, &doc.WorkspaceID, &doc.Title, &doc.Filename, &doc.FileKey, &doc.FileSize,
		&doc.MimeType, &doc.Status, &doc.PageCount, &doc.ExtractedText, &meta,
		&doc.ErrorMessage, &doc.UploadedBy, &doc.Ctime, &doc.Mtime, &doc.ProcessedAt,
	); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func metaOrEmpty(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return map[string]interface{}{}
	}
	return meta
}
