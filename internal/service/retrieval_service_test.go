package service

import (
	"context"
	"testing"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
	"github.com/paperbotai/paperbot/internal/vectorindex"
)

type fakeRetrievalEmbedder struct {
	mc        *model.EmbeddingModelConfig
	activeErr error
	vec       []float32
	embeds    int
}

func (f *fakeRetrievalEmbedder) ActiveConfig(ctx context.Context) (*model.EmbeddingModelConfig, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	return f.mc, nil
}

func (f *fakeRetrievalEmbedder) Embed(ctx context.Context, mc *model.EmbeddingModelConfig, text string, taskType string) ([]float32, error) {
	f.embeds++
	return f.vec, nil
}

type fakeRetrievalChunks struct {
	chunks map[string]model.Chunk
}

func (f *fakeRetrievalChunks) ListByIDs(ctx context.Context, ids []string) ([]model.Chunk, error) {
	var out []model.Chunk
	for _, id := range ids {
		if chunk, ok := f.chunks[id]; ok {
			out = append(out, chunk)
		}
	}
	return out, nil
}

type fakeRetrievalDocs struct {
	docs []model.Document
}

func (f *fakeRetrievalDocs) ListByWorkspaceIDs(ctx context.Context, workspaceID string, ids []string, status string) ([]model.Document, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Document
	for _, doc := range f.docs {
		if doc.WorkspaceID == workspaceID && doc.Status == status && want[doc.ID] {
			out = append(out, doc)
		}
	}
	return out, nil
}

type fakeRetrievalWorkspaces struct {
	ws *model.Workspace
}

func (f *fakeRetrievalWorkspaces) GetByOwner(ctx context.Context, ownerID, id string) (*model.Workspace, error) {
	if f.ws == nil || f.ws.OwnerID != ownerID || f.ws.ID != id {
		return nil, appErr.ErrNotFound
	}
	return f.ws, nil
}

func newRetrievalService(t *testing.T, embedder *fakeRetrievalEmbedder,
	chunks *fakeRetrievalChunks, docs *fakeRetrievalDocs) *RetrievalService {
	t.Helper()
	mgr, err := vectorindex.NewManager(t.TempDir())
	require.NoError(t, err)
	return &RetrievalService{
		engine:     embedder,
		indexes:    mgr,
		chunks:     chunks,
		documents:  docs,
		workspaces: &fakeRetrievalWorkspaces{ws: &model.Workspace{ID: "ws-1", OwnerID: "user-1"}},
		queryCache: expirable.NewLRU[string, []float32](queryCacheSize, nil, queryCacheTTL),
	}
}

func TestRetrieveHydratesDocumentTitles(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeRetrievalEmbedder{
		mc:  &model.EmbeddingModelConfig{ID: "emb-1", Dimension: 3},
		vec: []float32{1, 0, 0},
	}
	chunks := &fakeRetrievalChunks{chunks: map[string]model.Chunk{
		"chunk-1": {ID: "chunk-1", DocumentID: "doc-1", ChunkIndex: 0, Text: "first excerpt"},
		"chunk-2": {ID: "chunk-2", DocumentID: "doc-1", ChunkIndex: 1, Text: "second excerpt"},
	}}
	docs := &fakeRetrievalDocs{docs: []model.Document{
		{ID: "doc-1", WorkspaceID: "ws-1", Title: "Attention Is All You Need", Status: model.DocStatusIndexed},
	}}
	svc := newRetrievalService(t, embedder, chunks, docs)

	idx, err := svc.indexes.Get(3)
	require.NoError(t, err)
	require.NoError(t, idx.Add(vectorindex.Ref{ChunkID: "chunk-1", DocumentID: "doc-1", WorkspaceID: "ws-1"}, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(vectorindex.Ref{ChunkID: "chunk-2", DocumentID: "doc-1", WorkspaceID: "ws-1"}, []float32{0, 1, 0}))

	results, err := svc.Retrieve(ctx, "user-1", "ws-1", "what is attention?", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "chunk-1", results[0].Chunk.ID)
	for _, r := range results {
		assert.Equal(t, "Attention Is All You Need", r.DocumentTitle)
	}
}

func TestRetrieveNoActiveModel(t *testing.T) {
	embedder := &fakeRetrievalEmbedder{activeErr: appErr.ErrNoActiveModel}
	svc := newRetrievalService(t, embedder, &fakeRetrievalChunks{}, &fakeRetrievalDocs{})

	_, err := svc.Retrieve(context.Background(), "user-1", "ws-1", "anything", 5)
	assert.ErrorIs(t, err, appErr.ErrNoActiveModel)
	assert.Zero(t, embedder.embeds)
}

func TestRetrieveEmptyWorkspace(t *testing.T) {
	embedder := &fakeRetrievalEmbedder{
		mc:  &model.EmbeddingModelConfig{ID: "emb-1", Dimension: 3},
		vec: []float32{1, 0, 0},
	}
	svc := newRetrievalService(t, embedder, &fakeRetrievalChunks{}, &fakeRetrievalDocs{})

	results, err := svc.Retrieve(context.Background(), "user-1", "ws-1", "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRetrieveReusesCachedQueryVector(t *testing.T) {
	embedder := &fakeRetrievalEmbedder{
		mc:  &model.EmbeddingModelConfig{ID: "emb-1", Dimension: 3},
		vec: []float32{1, 0, 0},
	}
	svc := newRetrievalService(t, embedder, &fakeRetrievalChunks{}, &fakeRetrievalDocs{})

	for i := 0; i < 3; i++ {
		_, err := svc.Retrieve(context.Background(), "user-1", "ws-1", "same question", 5)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, embedder.embeds)
}
