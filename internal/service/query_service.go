package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
	"github.com/paperbotai/paperbot/internal/repo"
)

// QueryResult is one answered question, with the sources the answer was
// generated from.
type QueryResult struct {
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
	Chunks    []ScoredChunk    `json:"chunks"`
}

// SummarizeResult is a SummaryResult plus the documents it actually
// covered.
type SummarizeResult struct {
	SummaryResult
	DocumentIDs []string `json:"document_ids"`
}

// QueryService composes retrieval and generation into the two synchronous
// read paths: ad-hoc questions and multi-document summaries.
type QueryService struct {
	retrieval  *RetrievalService
	generation *GenerationService
	documents  *repo.DocumentRepo
	chunks     *repo.ChunkRepo
	workspaces *repo.WorkspaceRepo
	audit      *AuditService
}

func NewQueryService(retrieval *RetrievalService, generation *GenerationService,
	documents *repo.DocumentRepo, chunks *repo.ChunkRepo, workspaces *repo.WorkspaceRepo,
	audit *AuditService) *QueryService {
	return &QueryService{
		retrieval:  retrieval,
		generation: generation,
		documents:  documents,
		chunks:     chunks,
		workspaces: workspaces,
		audit:      audit,
	}
}

// Query retrieves the closest chunks and answers the question from them.
func (s *QueryService) Query(ctx context.Context, userID, workspaceID, query string, topK int) (*QueryResult, error) {
	if query == "" {
		return nil, appErr.ErrInvalid
	}
	chunks, err := s.retrieval.Retrieve(ctx, userID, workspaceID, query, topK)
	if err != nil {
		return nil, err
	}
	answer, citations, err := s.generation.Answer(ctx, query, chunks, nil)
	if err != nil {
		return nil, err
	}
	if citations == nil {
		citations = []model.Citation{}
	}
	s.audit.Record(ctx, userID, model.AuditQuery, "workspace", workspaceID, map[string]interface{}{
		"top_k":  topK,
		"chunks": len(chunks),
	})
	return &QueryResult{Answer: answer, Citations: citations, Chunks: chunks}, nil
}

// Summarize builds a summary over every chunk of the selected documents.
// Only documents that finished ingestion are considered.
func (s *QueryService) Summarize(ctx context.Context, userID, workspaceID string, documentIDs []string, summaryType string) (*SummarizeResult, error) {
	if _, err := s.workspaces.GetByOwner(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	if len(documentIDs) == 0 {
		return nil, appErr.ErrInvalid
	}
	docs, err := s.documents.ListByWorkspaceIDs(ctx, workspaceID, documentIDs, model.DocStatusIndexed)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, appErr.ErrNotFound
	}
	titleByID := make(map[string]string, len(docs))
	coveredIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		titleByID[doc.ID] = doc.Title
		coveredIDs = append(coveredIDs, doc.ID)
	}
	chunks, err := s.chunks.ListByDocuments(ctx, coveredIDs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, appErr.ErrNotFound
	}
	sources := make([]ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, ScoredChunk{Chunk: chunk, DocumentTitle: titleByID[chunk.DocumentID]})
	}
	summary, err := s.generation.Summarize(ctx, sources, summaryType)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, userID, model.AuditSummarize, "workspace", workspaceID, map[string]interface{}{
		"documents":    len(coveredIDs),
		"summary_type": summaryType,
	})
	logutil.GetLogger(ctx).Info("summary generated",
		zap.String("workspace_id", workspaceID), zap.Int("documents", len(coveredIDs)), zap.Int("chunks", len(chunks)))
	return &SummarizeResult{SummaryResult: *summary, DocumentIDs: coveredIDs}, nil
}
