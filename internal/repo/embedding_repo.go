package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) Save(ctx context.Context, emb *model.ChunkEmbedding) error {
	const query = `
		INSERT INTO chunk_embeddings (chunk_id, model_config_id, embedding, ctime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chunk_id) DO UPDATE SET
			model_config_id = EXCLUDED.model_config_id,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		emb.ChunkID,
		emb.ModelConfigID,
		pgvector.NewVector(emb.Vector),
		emb.Ctime,
	)
	return err
}

func (r *EmbeddingRepo) GetByChunkID(ctx context.Context, chunkID string) (*model.ChunkEmbedding, error) {
	const query = `
		SELECT chunk_id, model_config_id, embedding, ctime
		FROM chunk_embeddings
		WHERE chunk_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, chunkID)
	var emb model.ChunkEmbedding
	var vec pgvector.Vector
	if err := row.Scan(&emb.ChunkID, &emb.ModelConfigID, &vec, &emb.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	emb.Vector = vec.Slice()
	return &emb, nil
}

// ListIndexedByModel streams every embedding produced by the given model
// config together with the chunk/document/workspace scoping the vector index
// needs. The index rebuild path relies on this being the canonical durable
// record of all vectors.
func (r *EmbeddingRepo) ListIndexedByModel(ctx context.Context, modelConfigID string) ([]model.IndexedEmbedding, error) {
	const query = `
		SELECT e.chunk_id, c.document_id, d.workspace_id, e.embedding
		FROM chunk_embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE e.model_config_id = $1
		ORDER BY d.ctime, c.document_id, c.chunk_index
	`
	return r.scanIndexed(ctx, query, modelConfigID)
}

// ListIndexedByWorkspace is the workspace-scoped variant used by reindex.
func (r *EmbeddingRepo) ListIndexedByWorkspace(ctx context.Context, modelConfigID, workspaceID string) ([]model.IndexedEmbedding, error) {
	const query = `
		SELECT e.chunk_id, c.document_id, d.workspace_id, e.embedding
		FROM chunk_embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE e.model_config_id = $1 AND d.workspace_id = $2
		ORDER BY d.ctime, c.document_id, c.chunk_index
	`
	return r.scanIndexed(ctx, query, modelConfigID, workspaceID)
}

func (r *EmbeddingRepo) scanIndexed(ctx context.Context, query string, args ...interface{}) ([]model.IndexedEmbedding, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.IndexedEmbedding
	for rows.Next() {
		var item model.IndexedEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&item.ChunkID, &item.DocumentID, &item.WorkspaceID, &vec); err != nil {
			return nil, err
		}
		item.Vector = vec.Slice()
		results = append(results, item)
	}
	return results, rows.Err()
}
