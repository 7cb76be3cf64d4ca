package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paperbotai/paperbot/internal/ai"
	"github.com/paperbotai/paperbot/internal/config"
	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

// ConfigStore is the slice of the model config repo the engine needs.
type ConfigStore interface {
	GetActiveEmbedding(ctx context.Context) (*model.EmbeddingModelConfig, error)
	CreateEmbedding(ctx context.Context, cfg *model.EmbeddingModelConfig) error
}

// Engine resolves the active embedding model config and turns text into
// vectors through the configured provider. The provider client is built
// lazily and cached.
type Engine struct {
	store ConfigStore
	cfg   config.EmbeddingConfig

	mu       sync.Mutex
	provider ai.IEmbedProvider
}

func NewEngine(store ConfigStore, cfg config.EmbeddingConfig) *Engine {
	return &Engine{store: store, cfg: cfg}
}

// ActiveConfig returns the single active embedding model config.
func (e *Engine) ActiveConfig(ctx context.Context) (*model.EmbeddingModelConfig, error) {
	mc, err := e.store.GetActiveEmbedding(ctx)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrNoActiveModel
		}
		return nil, err
	}
	return mc, nil
}

// EnsureActiveConfig returns the active config, bootstrapping a default one
// on first run so ingestion never blocks on manual model setup.
func (e *Engine) EnsureActiveConfig(ctx context.Context) (*model.EmbeddingModelConfig, error) {
	mc, err := e.ActiveConfig(ctx)
	if err == nil {
		return mc, nil
	}
	if !errors.Is(err, appErr.ErrNoActiveModel) {
		return nil, err
	}
	mc = &model.EmbeddingModelConfig{
		ID:        uuid.NewString(),
		Name:      "default",
		Version:   "1.0",
		ModelID:   e.cfg.DefaultModelID,
		Dimension: e.cfg.DefaultDimension,
		IsActive:  true,
		Ctime:     time.Now().Unix(),
	}
	if err := e.store.CreateEmbedding(ctx, mc); err != nil {
		if appErr.IsConflict(err) {
			// Another node bootstrapped concurrently.
			return e.ActiveConfig(ctx)
		}
		return nil, err
	}
	return mc, nil
}

// Embed produces the vector for text under the given model config and
// verifies it matches the declared dimension.
func (e *Engine) Embed(ctx context.Context, mc *model.EmbeddingModelConfig, text string, taskType string) ([]float32, error) {
	provider, err := e.getProvider()
	if err != nil {
		return nil, err
	}
	if e.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	vec, err := provider.Embed(ctx, mc.ModelID, text, taskType)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			return nil, appErr.ErrModelUnavailable
		}
		return nil, err
	}
	if mc.Dimension > 0 && len(vec) != mc.Dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, config declares %d", len(vec), mc.Dimension)
	}
	return vec, nil
}

func (e *Engine) getProvider() (ai.IEmbedProvider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.provider != nil {
		return e.provider, nil
	}
	provider, err := ai.NewEmbedProvider(e.cfg.Provider, e.cfg.Data)
	if err != nil {
		return nil, err
	}
	e.provider = provider
	return provider, nil
}
