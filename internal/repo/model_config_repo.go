package repo

import (
	"context"
	"database/sql"

	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/pkg/dbutil"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

// ModelConfigRepo manages the versioned embedding and generation model
// configs. At most one row per kind is active at a time; Activate* enforce
// that transactionally.
type ModelConfigRepo struct {
	db *sql.DB
}

func NewModelConfigRepo(db *sql.DB) *ModelConfigRepo {
	return &ModelConfigRepo{db: db}
}

func (r *ModelConfigRepo) CreateEmbedding(ctx context.Context, cfg *model.EmbeddingModelConfig) error {
	const query = `
		INSERT INTO embedding_models (id, name, version, model_id, dimension, is_active, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, cfg.ID, cfg.Name, cfg.Version, cfg.ModelID, cfg.Dimension, cfg.IsActive, cfg.Ctime)
	if err != nil && dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

// GetActiveEmbedding returns the singleton active embedding model config.
func (r *ModelConfigRepo) GetActiveEmbedding(ctx context.Context) (*model.EmbeddingModelConfig, error) {
	const query = `
		SELECT id, name, version, model_id, dimension, is_active, ctime
		FROM embedding_models
		WHERE is_active = TRUE
		ORDER BY ctime DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query)
	var cfg model.EmbeddingModelConfig
	if err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Version, &cfg.ModelID, &cfg.Dimension, &cfg.IsActive, &cfg.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *ModelConfigRepo) ListEmbedding(ctx context.Context) ([]model.EmbeddingModelConfig, error) {
	const query = `
		SELECT id, name, version, model_id, dimension, is_active, ctime
		FROM embedding_models
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.EmbeddingModelConfig
	for rows.Next() {
		var cfg model.EmbeddingModelConfig
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.Version, &cfg.ModelID, &cfg.Dimension, &cfg.IsActive, &cfg.Ctime); err != nil {
			return nil, err
		}
		results = append(results, cfg)
	}
	return results, rows.Err()
}

func (r *ModelConfigRepo) ActivateEmbedding(ctx context.Context, id string) error {
	return r.activate(ctx, "embedding_models", id)
}

func (r *ModelConfigRepo) CreateGeneration(ctx context.Context, cfg *model.GenerationModelConfig) error {
	const query = `
		INSERT INTO generation_models (id, name, version, provider, model_id, is_active, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, cfg.ID, cfg.Name, cfg.Version, cfg.Provider, cfg.ModelID, cfg.IsActive, cfg.Ctime)
	if err != nil && dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *ModelConfigRepo) GetActiveGeneration(ctx context.Context) (*model.GenerationModelConfig, error) {
	const query = `
		SELECT id, name, version, provider, model_id, is_active, ctime
		FROM generation_models
		WHERE is_active = TRUE
		ORDER BY ctime DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query)
	var cfg model.GenerationModelConfig
	if err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Version, &cfg.Provider, &cfg.ModelID, &cfg.IsActive, &cfg.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *ModelConfigRepo) ListGeneration(ctx context.Context) ([]model.GenerationModelConfig, error) {
	const query = `
		SELECT id, name, version, provider, model_id, is_active, ctime
		FROM generation_models
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.GenerationModelConfig
	for rows.Next() {
		var cfg model.GenerationModelConfig
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.Version, &cfg.Provider, &cfg.ModelID, &cfg.IsActive, &cfg.Ctime); err != nil {
			return nil, err
		}
		results = append(results, cfg)
	}
	return results, rows.Err()
}

func (r *ModelConfigRepo) ActivateGeneration(ctx context.Context, id string) error {
	return r.activate(ctx, "generation_models", id)
}

func (r *ModelConfigRepo) activate(ctx context.Context, table, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `UPDATE `+table+` SET is_active = TRUE WHERE id = $1`, id)
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
	return tx.Commit()
}
