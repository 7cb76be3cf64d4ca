package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/pkg/dbutil"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

const chunkColumns = `id, document_id, chunk_index, text, start_char, end_char, page_number, token_count, ctime`

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		rows = append(rows, map[string]interface{}{
			"id":          chunk.ID,
			"document_id": chunk.DocumentID,
			"chunk_index": chunk.ChunkIndex,
			"text":        chunk.Text,
			"start_char":  chunk.StartChar,
			"end_char":    chunk.EndChar,
			"page_number": chunk.PageNumber,
			"token_count": chunk.TokenCount,
			"ctime":       chunk.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", rows)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// DeleteByDocument removes all chunks of a document; embeddings cascade.
// Used by the chunk stage to make reprocessing idempotent.
func (r *ChunkRepo) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	const query = `DELETE FROM chunks WHERE document_id = $1`
	result, err := r.db.ExecContext(ctx, query, documentID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]model.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE document_id = $1 ORDER BY chunk_index`
	return r.scanMany(ctx, query, documentID)
}

// ListByDocuments returns chunks for several documents ordered by document
// then chunk_index, the order the summarize prompt expects.
func (r *ChunkRepo) ListByDocuments(ctx context.Context, documentIDs []string) ([]model.Chunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE document_id IN (?) ORDER BY document_id, chunk_index`
	query, args, err := sqlx.In(query, documentIDs)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	return r.scanMany(ctx, query, args...)
}

func (r *ChunkRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id IN (?)`
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	return r.scanMany(ctx, query, args...)
}

func (r *ChunkRepo) scanMany(ctx context.Context, query string, args ...interface{}) ([]model.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Chunk
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Text,
			&chunk.StartChar, &chunk.EndChar, &chunk.PageNumber, &chunk.TokenCount, &chunk.Ctime,
		); err != nil {
			return nil, err
		}
		results = append(results, chunk)
	}
	return results, rows.Err()
}
