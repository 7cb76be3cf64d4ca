package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/ai"
	"github.com/paperbotai/paperbot/internal/embedding"
	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/repo"
	"github.com/paperbotai/paperbot/internal/vectorindex"
)

const (
	defaultTopK    = 5
	maxTopK        = 50
	queryCacheSize = 1024
	queryCacheTTL  = 10 * time.Minute
)

// ScoredChunk is one retrieved chunk with its source document title and
// the squared L2 distance from the query.
type ScoredChunk struct {
	Chunk         model.Chunk `json:"chunk"`
	DocumentTitle string      `json:"document_title"`
	Distance      float64     `json:"distance"`
}

// Narrow views over the embedding engine and the repos, so tests can stand
// in for them.
type retrievalEmbedder interface {
	ActiveConfig(ctx context.Context) (*model.EmbeddingModelConfig, error)
	Embed(ctx context.Context, mc *model.EmbeddingModelConfig, text string, taskType string) ([]float32, error)
}

type retrievalChunkStore interface {
	ListByIDs(ctx context.Context, ids []string) ([]model.Chunk, error)
}

type retrievalDocumentStore interface {
	ListByWorkspaceIDs(ctx context.Context, workspaceID string, ids []string, status string) ([]model.Document, error)
}

type retrievalWorkspaceStore interface {
	GetByOwner(ctx context.Context, ownerID, id string) (*model.Workspace, error)
}

type RetrievalService struct {
	engine     retrievalEmbedder
	indexes    *vectorindex.Manager
	chunks     retrievalChunkStore
	documents  retrievalDocumentStore
	workspaces retrievalWorkspaceStore
	queryCache *expirable.LRU[string, []float32]
}

func NewRetrievalService(engine *embedding.Engine, indexes *vectorindex.Manager,
	chunks *repo.ChunkRepo, documents *repo.DocumentRepo, workspaces *repo.WorkspaceRepo) *RetrievalService {
	return &RetrievalService{
		engine:     engine,
		indexes:    indexes,
		chunks:     chunks,
		documents:  documents,
		workspaces: workspaces,
		queryCache: expirable.NewLRU[string, []float32](queryCacheSize, nil, queryCacheTTL),
	}
}

// Retrieve embeds the query and returns the topK closest chunks in the
// workspace, ascending by distance. An empty workspace yields an empty
// result, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, userID, workspaceID, query string, topK int) ([]ScoredChunk, error) {
	if _, err := s.workspaces.GetByOwner(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	// Read path: an unconfigured embedding model is the caller's error, it
	// must never bootstrap one the way ingestion does.
	mc, err := s.engine.ActiveConfig(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := s.queryVector(ctx, mc, query)
	if err != nil {
		return nil, err
	}
	idx, err := s.indexes.Get(mc.Dimension)
	if err != nil {
		return nil, err
	}
	hits, err := idx.Search(vec, topK, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []ScoredChunk{}, nil
	}
	return s.hydrate(ctx, workspaceID, hits)
}

// queryVector embeds the query text, reusing a recent vector for the same
// query under the same model config.
func (s *RetrievalService) queryVector(ctx context.Context, mc *model.EmbeddingModelConfig, query string) ([]float32, error) {
	sum := sha256.Sum256([]byte(mc.ID + "\x00" + query))
	key := hex.EncodeToString(sum[:])
	if vec, ok := s.queryCache.Get(key); ok {
		return vec, nil
	}
	vec, err := s.engine.Embed(ctx, mc, query, ai.TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	s.queryCache.Add(key, vec)
	return vec, nil
}

func (s *RetrievalService) hydrate(ctx context.Context, workspaceID string, hits []vectorindex.Hit) ([]ScoredChunk, error) {
	chunkIDs := make([]string, 0, len(hits))
	docIDs := make([]string, 0, len(hits))
	seenDocs := make(map[string]bool)
	for _, hit := range hits {
		chunkIDs = append(chunkIDs, hit.ChunkID)
		if !seenDocs[hit.DocumentID] {
			seenDocs[hit.DocumentID] = true
			docIDs = append(docIDs, hit.DocumentID)
		}
	}
	chunks, err := s.chunks.ListByIDs(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	chunkByID := make(map[string]model.Chunk, len(chunks))
	for _, chunk := range chunks {
		chunkByID[chunk.ID] = chunk
	}
	docs, err := s.documents.ListByWorkspaceIDs(ctx, workspaceID, docIDs, model.DocStatusIndexed)
	if err != nil {
		return nil, err
	}
	titleByID := make(map[string]string, len(docs))
	for _, doc := range docs {
		titleByID[doc.ID] = doc.Title
	}

	results := make([]ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := chunkByID[hit.ChunkID]
		if !ok {
			// Index can be momentarily ahead of or behind the database.
			logutil.GetLogger(ctx).Debug("stale index hit dropped", zap.String("chunk_id", hit.ChunkID))
			continue
		}
		results = append(results, ScoredChunk{
			Chunk:         chunk,
			DocumentTitle: titleByID[hit.DocumentID],
			Distance:      hit.Distance,
		})
	}
	return results, nil
}
