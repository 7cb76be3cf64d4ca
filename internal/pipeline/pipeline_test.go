package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperbotai/paperbot/internal/chunker"
	"github.com/paperbotai/paperbot/internal/extract"
	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/vectorindex"
)

type fakeDocs struct {
	docs     map[string]*model.Document
	statuses []string
	failMsg  string
	indexed  bool
}

func (f *fakeDocs) GetByID(ctx context.Context, id string) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	return doc, nil
}

func (f *fakeDocs) UpdateStatus(ctx context.Context, id, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeDocs) SaveExtracted(ctx context.Context, id, text string, pageCount int, metadata map[string]interface{}) error {
	f.statuses = append(f.statuses, model.DocStatusExtracted)
	f.docs[id].ExtractedText = text
	f.docs[id].PageCount = pageCount
	return nil
}

func (f *fakeDocs) MarkIndexed(ctx context.Context, id string, processedAt int64) error {
	f.indexed = true
	f.statuses = append(f.statuses, model.DocStatusIndexed)
	return nil
}

func (f *fakeDocs) MarkFailed(ctx context.Context, id, errMsg string) error {
	f.failMsg = errMsg
	f.statuses = append(f.statuses, model.DocStatusFailed)
	return nil
}

type fakeChunks struct {
	deleted  int
	inserted []model.Chunk
}

func (f *fakeChunks) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	f.deleted++
	n := int64(len(f.inserted))
	f.inserted = nil
	return n, nil
}

func (f *fakeChunks) InsertBatch(ctx context.Context, chunks []model.Chunk) error {
	f.inserted = append(f.inserted, chunks...)
	return nil
}

type fakeEmbeds struct {
	saved []model.ChunkEmbedding
	rows  []model.IndexedEmbedding
}

func (f *fakeEmbeds) Save(ctx context.Context, emb *model.ChunkEmbedding) error {
	f.saved = append(f.saved, *emb)
	return nil
}

func (f *fakeEmbeds) ListIndexedByWorkspace(ctx context.Context, modelConfigID, workspaceID string) ([]model.IndexedEmbedding, error) {
	return f.rows, nil
}

type fakeRuns struct {
	created []model.PipelineRun
	stages  []string
	status  string
	errMsg  string
}

func (f *fakeRuns) Create(ctx context.Context, run *model.PipelineRun) error {
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeRuns) SetStage(ctx context.Context, id, stage string) error {
	f.stages = append(f.stages, stage)
	return nil
}

func (f *fakeRuns) Close(ctx context.Context, id, status, errMsg string, completedAt int64) error {
	f.status = status
	f.errMsg = errMsg
	return nil
}

type fakeFiles struct {
	blobs map[string][]byte
}

func (f *fakeFiles) Save(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.blobs[key] = data
	return nil
}

func (f *fakeFiles) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.blobs[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFiles) Delete(ctx context.Context, key string) error {
	delete(f.blobs, key)
	return nil
}

type fakeEmbedder struct {
	mc     *model.EmbeddingModelConfig
	fail   bool
	embeds int
}

func (f *fakeEmbedder) EnsureActiveConfig(ctx context.Context) (*model.EmbeddingModelConfig, error) {
	return f.mc, nil
}

func (f *fakeEmbedder) Embed(ctx context.Context, mc *model.EmbeddingModelConfig, text string, taskType string) ([]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embed backend down")
	}
	f.embeds++
	vec := make([]float32, mc.Dimension)
	for i := range vec {
		vec[i] = float32(len(text) % (i + 2))
	}
	return vec, nil
}

func newTestPipeline(t *testing.T, docs *fakeDocs, chunks *fakeChunks, embeds *fakeEmbeds,
	runs *fakeRuns, files *fakeFiles, embedder *fakeEmbedder) (*Pipeline, *vectorindex.Manager) {
	t.Helper()
	mgr, err := vectorindex.NewManager(t.TempDir())
	require.NoError(t, err)
	p := New(Deps{
		Documents:  docs,
		Chunks:     chunks,
		Embeddings: embeds,
		Runs:       runs,
		Files:      files,
		Embedder:   embedder,
		Indexes:    mgr,
		Extract: func(path string) (*extract.Result, error) {
			return &extract.Result{Text: "First sentence. Second sentence. Third sentence.", PageCount: 2}, nil
		},
		Chunker: chunker.New(30, 5),
	})
	return p, mgr
}

func TestProcessDocumentHappyPath(t *testing.T) {
	docs := &fakeDocs{docs: map[string]*model.Document{
		"doc1": {ID: "doc1", WorkspaceID: "ws1", FileKey: "key1", Status: model.DocStatusUploaded},
	}}
	chunks := &fakeChunks{}
	embeds := &fakeEmbeds{}
	runs := &fakeRuns{}
	files := &fakeFiles{blobs: map[string][]byte{"key1": []byte("%PDF-fake")}}
	embedder := &fakeEmbedder{mc: &model.EmbeddingModelConfig{ID: "m1", Dimension: 4}}
	p, mgr := newTestPipeline(t, docs, chunks, embeds, runs, files, embedder)

	require.NoError(t, p.ProcessDocument(context.Background(), "doc1", 1))

	require.NotEmpty(t, chunks.inserted)
	assert.Equal(t, len(chunks.inserted), len(embeds.saved))
	assert.Equal(t, len(chunks.inserted), embedder.embeds)
	assert.True(t, docs.indexed)
	assert.Equal(t, model.RunStatusCompleted, runs.status)
	assert.Equal(t, []string{model.StageChunk, model.StageEmbed, model.StageIndex}, runs.stages)
	require.Len(t, runs.created, 1)
	assert.Equal(t, model.StageExtract, runs.created[0].Stage)
	assert.Equal(t, 1, runs.created[0].Attempt)

	idx, err := mgr.Get(4)
	require.NoError(t, err)
	assert.Equal(t, len(chunks.inserted), idx.Len())
}

func TestProcessDocumentStatusProgression(t *testing.T) {
	docs := &fakeDocs{docs: map[string]*model.Document{
		"doc1": {ID: "doc1", WorkspaceID: "ws1", FileKey: "key1"},
	}}
	files := &fakeFiles{blobs: map[string][]byte{"key1": []byte("pdf")}}
	embedder := &fakeEmbedder{mc: &model.EmbeddingModelConfig{ID: "m1", Dimension: 2}}
	p, _ := newTestPipeline(t, docs, &fakeChunks{}, &fakeEmbeds{}, &fakeRuns{}, files, embedder)

	require.NoError(t, p.ProcessDocument(context.Background(), "doc1", 1))
	assert.Equal(t, []string{
		model.DocStatusProcessing,
		model.DocStatusExtracted,
		model.DocStatusChunked,
		model.DocStatusEmbedded,
		model.DocStatusIndexed,
	}, docs.statuses)
}

func TestProcessDocumentEmbedFailure(t *testing.T) {
	docs := &fakeDocs{docs: map[string]*model.Document{
		"doc1": {ID: "doc1", WorkspaceID: "ws1", FileKey: "key1"},
	}}
	runs := &fakeRuns{}
	files := &fakeFiles{blobs: map[string][]byte{"key1": []byte("pdf")}}
	embedder := &fakeEmbedder{mc: &model.EmbeddingModelConfig{ID: "m1", Dimension: 2}, fail: true}
	p, _ := newTestPipeline(t, docs, &fakeChunks{}, &fakeEmbeds{}, runs, files, embedder)

	err := p.ProcessDocument(context.Background(), "doc1", 2)
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, runs.status)
	assert.Contains(t, runs.errMsg, "embed backend down")
	assert.Contains(t, docs.failMsg, "embed backend down")
	assert.False(t, docs.indexed)
}

func TestProcessDocumentMissingFile(t *testing.T) {
	docs := &fakeDocs{docs: map[string]*model.Document{
		"doc1": {ID: "doc1", WorkspaceID: "ws1", FileKey: "gone"},
	}}
	runs := &fakeRuns{}
	files := &fakeFiles{blobs: map[string][]byte{}}
	embedder := &fakeEmbedder{mc: &model.EmbeddingModelConfig{ID: "m1", Dimension: 2}}
	p, _ := newTestPipeline(t, docs, &fakeChunks{}, &fakeEmbeds{}, runs, files, embedder)

	err := p.ProcessDocument(context.Background(), "doc1", 1)
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, runs.status)
}

func TestReindexWorkspaceScopedReset(t *testing.T) {
	docs := &fakeDocs{docs: map[string]*model.Document{}}
	embeds := &fakeEmbeds{rows: []model.IndexedEmbedding{
		{ChunkID: "c1", DocumentID: "d1", WorkspaceID: "ws1", Vector: []float32{1, 0}},
		{ChunkID: "c2", DocumentID: "d1", WorkspaceID: "ws1", Vector: []float32{0, 1}},
	}}
	embedder := &fakeEmbedder{mc: &model.EmbeddingModelConfig{ID: "m1", Dimension: 2}}
	p, mgr := newTestPipeline(t, docs, &fakeChunks{}, embeds, &fakeRuns{}, &fakeFiles{blobs: map[string][]byte{}}, embedder)

	// Seed a vector from another workspace that must survive the reindex.
	idx, err := mgr.Get(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(vectorindex.Ref{ChunkID: "x1", DocumentID: "dx", WorkspaceID: "ws2"}, []float32{5, 5}))
	// And a stale vector from the target workspace that must be dropped.
	require.NoError(t, idx.Add(vectorindex.Ref{ChunkID: "old", DocumentID: "d0", WorkspaceID: "ws1"}, []float32{9, 9}))

	require.NoError(t, p.ReindexWorkspace(context.Background(), "ws1"))
	assert.Equal(t, 3, idx.Len())

	hits, err := idx.Search([]float32{9, 9}, 10, "ws1")
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "old", h.ChunkID)
	}
}
