package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/ai"
	"github.com/paperbotai/paperbot/internal/chunker"
	"github.com/paperbotai/paperbot/internal/extract"
	"github.com/paperbotai/paperbot/internal/filestore"
	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/vectorindex"
)

type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
	SaveExtracted(ctx context.Context, id, text string, pageCount int, metadata map[string]interface{}) error
	MarkIndexed(ctx context.Context, id string, processedAt int64) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

type ChunkStore interface {
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
	InsertBatch(ctx context.Context, chunks []model.Chunk) error
}

type EmbeddingStore interface {
	Save(ctx context.Context, emb *model.ChunkEmbedding) error
	ListIndexedByWorkspace(ctx context.Context, modelConfigID, workspaceID string) ([]model.IndexedEmbedding, error)
}

type RunStore interface {
	Create(ctx context.Context, run *model.PipelineRun) error
	SetStage(ctx context.Context, id, stage string) error
	Close(ctx context.Context, id, status, errMsg string, completedAt int64) error
}

type Embedder interface {
	EnsureActiveConfig(ctx context.Context) (*model.EmbeddingModelConfig, error)
	Embed(ctx context.Context, mc *model.EmbeddingModelConfig, text string, taskType string) ([]float32, error)
}

type IndexProvider interface {
	Get(dim int) (*vectorindex.Index, error)
	SaveAll(ctx context.Context) error
}

// Extractor pulls plain text out of the PDF at path.
type Extractor func(path string) (*extract.Result, error)

type Deps struct {
	Documents  DocumentStore
	Chunks     ChunkStore
	Embeddings EmbeddingStore
	Runs       RunStore
	Files      filestore.Store
	Embedder   Embedder
	Indexes    IndexProvider
	Extract    Extractor
	Chunker    *chunker.Chunker
}

// Pipeline drives a document through extract, chunk, embed and index. Every
// run restarts from extract; partial results of a failed run are replaced,
// never merged.
type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.Extract == nil {
		deps.Extract = extract.PDFText
	}
	if deps.Chunker == nil {
		deps.Chunker = chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap)
	}
	return &Pipeline{deps: deps}
}

// ProcessDocument runs the full ingestion pipeline for one document.
// attempt is the delivery count of the driving job, recorded on the run.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID string, attempt int) error {
	doc, err := p.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	run := &model.PipelineRun{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Status:     model.RunStatusRunning,
		Stage:      model.StageExtract,
		Attempt:    attempt,
		StartedAt:  time.Now().Unix(),
	}
	if err := p.deps.Runs.Create(ctx, run); err != nil {
		return err
	}
	if err := p.deps.Documents.UpdateStatus(ctx, doc.ID, model.DocStatusProcessing); err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", doc.ID), zap.String("run_id", run.ID))
	logger.Info("pipeline started", zap.Int("attempt", attempt))

	if err := p.process(ctx, doc, run); err != nil {
		logger.Error("pipeline failed", zap.String("stage", run.Stage), zap.Error(err))
		p.fail(ctx, doc.ID, run.ID, err)
		return err
	}
	now := time.Now().Unix()
	if err := p.deps.Documents.MarkIndexed(ctx, doc.ID, now); err != nil {
		return err
	}
	if err := p.deps.Runs.Close(ctx, run.ID, model.RunStatusCompleted, "", now); err != nil {
		return err
	}
	logger.Info("pipeline completed")
	return nil
}

func (p *Pipeline) process(ctx context.Context, doc *model.Document, run *model.PipelineRun) error {
	// extract
	result, err := p.extractText(ctx, doc)
	if err != nil {
		return err
	}
	if err := p.deps.Documents.SaveExtracted(ctx, doc.ID, result.Text, result.PageCount, doc.Metadata); err != nil {
		return err
	}

	// chunk
	run.Stage = model.StageChunk
	if err := p.deps.Runs.SetStage(ctx, run.ID, run.Stage); err != nil {
		return err
	}
	if _, err := p.deps.Chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	pieces := p.deps.Chunker.Split(result.Text)
	if len(pieces) == 0 {
		return fmt.Errorf("document produced no chunks")
	}
	now := time.Now().Unix()
	chunks := make([]model.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, model.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			ChunkIndex: piece.Index,
			Text:       piece.Text,
			StartChar:  piece.StartChar,
			EndChar:    piece.EndChar,
			Ctime:      now,
		})
	}
	if err := p.deps.Chunks.InsertBatch(ctx, chunks); err != nil {
		return err
	}
	if err := p.deps.Documents.UpdateStatus(ctx, doc.ID, model.DocStatusChunked); err != nil {
		return err
	}

	// embed
	run.Stage = model.StageEmbed
	if err := p.deps.Runs.SetStage(ctx, run.ID, run.Stage); err != nil {
		return err
	}
	mc, err := p.deps.Embedder.EnsureActiveConfig(ctx)
	if err != nil {
		return err
	}
	vectors := make([][]float32, 0, len(chunks))
	for i := range chunks {
		vec, err := p.deps.Embedder.Embed(ctx, mc, chunks[i].Text, ai.TaskTypeDocument)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", chunks[i].ChunkIndex, err)
		}
		emb := &model.ChunkEmbedding{
			ChunkID:       chunks[i].ID,
			ModelConfigID: mc.ID,
			Vector:        vec,
			Ctime:         time.Now().Unix(),
		}
		if err := p.deps.Embeddings.Save(ctx, emb); err != nil {
			return err
		}
		vectors = append(vectors, vec)
	}
	if err := p.deps.Documents.UpdateStatus(ctx, doc.ID, model.DocStatusEmbedded); err != nil {
		return err
	}

	// index
	run.Stage = model.StageIndex
	if err := p.deps.Runs.SetStage(ctx, run.ID, run.Stage); err != nil {
		return err
	}
	idx, err := p.deps.Indexes.Get(mc.Dimension)
	if err != nil {
		return err
	}
	// Re-ingestion replaces the document's vectors wholesale.
	idx.RemoveDocument(doc.ID)
	for i := range chunks {
		ref := vectorindex.Ref{ChunkID: chunks[i].ID, DocumentID: doc.ID, WorkspaceID: doc.WorkspaceID}
		if err := idx.Add(ref, vectors[i]); err != nil {
			return err
		}
	}
	return p.deps.Indexes.SaveAll(ctx)
}

// extractText stages the stored file into a temp file since the PDF reader
// wants a seekable path on disk.
func (p *Pipeline) extractText(ctx context.Context, doc *model.Document) (*extract.Result, error) {
	src, err := p.deps.Files.Open(ctx, doc.FileKey)
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "paperbot-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	return p.deps.Extract(tmp.Name())
}

func (p *Pipeline) fail(ctx context.Context, documentID, runID string, cause error) {
	msg := cause.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	if err := p.deps.Documents.MarkFailed(ctx, documentID, msg); err != nil {
		logutil.GetLogger(ctx).Error("mark document failed", zap.String("document_id", documentID), zap.Error(err))
	}
	if err := p.deps.Runs.Close(ctx, runID, model.RunStatusFailed, msg, time.Now().Unix()); err != nil {
		logutil.GetLogger(ctx).Error("close pipeline run", zap.String("run_id", runID), zap.Error(err))
	}
}

// ReindexWorkspace rebuilds the workspace's slice of the resident index
// from the embeddings stored in the database. Other workspaces in the same
// index are left untouched.
func (p *Pipeline) ReindexWorkspace(ctx context.Context, workspaceID string) error {
	mc, err := p.deps.Embedder.EnsureActiveConfig(ctx)
	if err != nil {
		return err
	}
	rows, err := p.deps.Embeddings.ListIndexedByWorkspace(ctx, mc.ID, workspaceID)
	if err != nil {
		return err
	}
	idx, err := p.deps.Indexes.Get(mc.Dimension)
	if err != nil {
		return err
	}
	idx.RemoveWorkspace(workspaceID)
	for _, row := range rows {
		ref := vectorindex.Ref{ChunkID: row.ChunkID, DocumentID: row.DocumentID, WorkspaceID: row.WorkspaceID}
		if err := idx.Add(ref, row.Vector); err != nil {
			return err
		}
	}
	logutil.GetLogger(ctx).Info("workspace reindexed",
		zap.String("workspace_id", workspaceID), zap.Int("vectors", len(rows)))
	return p.deps.Indexes.SaveAll(ctx)
}
