package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
	"github.com/paperbotai/paperbot/internal/repo"
)

// ModelService is the admin surface for embedding and generation model
// configs. Switching the active embedding model does not re-embed existing
// documents; they are picked up on reprocess or workspace reindex.
type ModelService struct {
	models *repo.ModelConfigRepo
}

func NewModelService(models *repo.ModelConfigRepo) *ModelService {
	return &ModelService{models: models}
}

func (s *ModelService) ListEmbedding(ctx context.Context) ([]model.EmbeddingModelConfig, error) {
	return s.models.ListEmbedding(ctx)
}

func (s *ModelService) CreateEmbedding(ctx context.Context, name, version, modelID string, dimension int) (*model.EmbeddingModelConfig, error) {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" || version == "" || strings.TrimSpace(modelID) == "" || dimension <= 0 {
		return nil, appErr.ErrInvalid
	}
	mc := &model.EmbeddingModelConfig{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   version,
		ModelID:   strings.TrimSpace(modelID),
		Dimension: dimension,
		Ctime:     time.Now().Unix(),
	}
	if err := s.models.CreateEmbedding(ctx, mc); err != nil {
		return nil, err
	}
	return mc, nil
}

func (s *ModelService) ActivateEmbedding(ctx context.Context, id string) error {
	if err := s.models.ActivateEmbedding(ctx, id); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding model activated", zap.String("config_id", id))
	return nil
}

func (s *ModelService) ListGeneration(ctx context.Context) ([]model.GenerationModelConfig, error) {
	return s.models.ListGeneration(ctx)
}

func (s *ModelService) CreateGeneration(ctx context.Context, name, version, provider, modelID string) (*model.GenerationModelConfig, error) {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	provider = strings.ToLower(strings.TrimSpace(provider))
	if name == "" || version == "" || provider == "" || strings.TrimSpace(modelID) == "" {
		return nil, appErr.ErrInvalid
	}
	mc := &model.GenerationModelConfig{
		ID:       uuid.NewString(),
		Name:     name,
		Version:  version,
		Provider: provider,
		ModelID:  strings.TrimSpace(modelID),
		Ctime:    time.Now().Unix(),
	}
	if err := s.models.CreateGeneration(ctx, mc); err != nil {
		return nil, err
	}
	return mc, nil
}

func (s *ModelService) ActivateGeneration(ctx context.Context, id string) error {
	if err := s.models.ActivateGeneration(ctx, id); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("generation model activated", zap.String("config_id", id))
	return nil
}
