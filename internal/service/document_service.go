package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/dispatch"
	"github.com/paperbotai/paperbot/internal/filestore"
	"github.com/paperbotai/paperbot/internal/model"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
	"github.com/paperbotai/paperbot/internal/repo"
	"github.com/paperbotai/paperbot/internal/vectorindex"
)

const maxUploadSize = 64 << 20 // 64 MiB

type DocumentService struct {
	documents  *repo.DocumentRepo
	runs       *repo.PipelineRunRepo
	workspaces *repo.WorkspaceRepo
	files      filestore.Store
	dispatcher *dispatch.Dispatcher
	indexes    *vectorindex.Manager
	audit      *AuditService
}

func NewDocumentService(documents *repo.DocumentRepo, runs *repo.PipelineRunRepo, workspaces *repo.WorkspaceRepo,
	files filestore.Store, dispatcher *dispatch.Dispatcher, indexes *vectorindex.Manager, audit *AuditService) *DocumentService {
	return &DocumentService{
		documents:  documents,
		runs:       runs,
		workspaces: workspaces,
		files:      files,
		dispatcher: dispatcher,
		indexes:    indexes,
		audit:      audit,
	}
}

type UploadRequest struct {
	WorkspaceID string
	Title       string
	Filename    string
	MimeType    string
	Size        int64
	Content     io.Reader
}

// Upload stores the PDF, creates the document record in uploaded state and
// queues the ingestion job.
func (s *DocumentService) Upload(ctx context.Context, userID string, req UploadRequest) (*model.Document, error) {
	if _, err := s.workspaces.GetByOwner(ctx, userID, req.WorkspaceID); err != nil {
		return nil, err
	}
	if err := validateUpload(&req); err != nil {
		return nil, err
	}
	fileKey := uuid.NewString() + ".pdf"
	if err := s.files.Save(ctx, fileKey, io.LimitReader(req.Content, maxUploadSize), req.Size); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	doc := &model.Document{
		ID:          uuid.NewString(),
		WorkspaceID: req.WorkspaceID,
		Title:       req.Title,
		Filename:    req.Filename,
		FileKey:     fileKey,
		FileSize:    req.Size,
		MimeType:    req.MimeType,
		Status:      model.DocStatusUploaded,
		UploadedBy:  userID,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		// Best effort: don't leave an orphaned blob behind.
		if derr := s.files.Delete(ctx, fileKey); derr != nil {
			logutil.GetLogger(ctx).Warn("cleanup uploaded file failed", zap.String("file_key", fileKey), zap.Error(derr))
		}
		return nil, err
	}
	jobID, err := s.dispatcher.EnqueueIngest(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, userID, model.AuditDocumentUpload, "document", doc.ID, map[string]interface{}{
		"workspace_id": req.WorkspaceID,
		"filename":     req.Filename,
	})
	logutil.GetLogger(ctx).Info("document uploaded",
		zap.String("document_id", doc.ID), zap.String("job_id", jobID), zap.Int64("size", req.Size))
	return doc, nil
}

func validateUpload(req *UploadRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" {
		return appErr.ErrInvalid
	}
	if req.Title == "" {
		req.Title = strings.TrimSuffix(req.Filename, ".pdf")
	}
	if req.Size <= 0 || req.Size > maxUploadSize {
		return appErr.ErrInvalid
	}
	isPDF := strings.EqualFold(req.MimeType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(req.Filename), ".pdf")
	if !isPDF {
		return appErr.ErrInvalid
	}
	return nil
}

func (s *DocumentService) Get(ctx context.Context, userID, workspaceID, id string) (*model.Document, error) {
	if _, err := s.workspaces.GetByOwner(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.documents.GetByWorkspace(ctx, workspaceID, id)
}

func (s *DocumentService) List(ctx context.Context, userID, workspaceID string) ([]model.Document, error) {
	if _, err := s.workspaces.GetByOwner(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.documents.ListByWorkspace(ctx, workspaceID)
}

// Runs returns the document's pipeline history, newest first.
func (s *DocumentService) Runs(ctx context.Context, userID, workspaceID, id string) ([]model.PipelineRun, error) {
	if _, err := s.Get(ctx, userID, workspaceID, id); err != nil {
		return nil, err
	}
	return s.runs.ListByDocument(ctx, id)
}

// Delete removes the document row (chunks and embeddings cascade), evicts
// its vectors from the resident indexes and drops the stored file.
func (s *DocumentService) Delete(ctx context.Context, userID, workspaceID, id string) error {
	doc, err := s.Get(ctx, userID, workspaceID, id)
	if err != nil {
		return err
	}
	if err := s.documents.Delete(ctx, workspaceID, id); err != nil {
		return err
	}
	removed := s.indexes.RemoveDocument(id)
	if err := s.files.Delete(ctx, doc.FileKey); err != nil {
		logutil.GetLogger(ctx).Warn("delete stored file failed", zap.String("file_key", doc.FileKey), zap.Error(err))
	}
	s.audit.Record(ctx, userID, model.AuditDocumentDelete, "document", id, map[string]interface{}{
		"workspace_id": workspaceID,
	})
	logutil.GetLogger(ctx).Info("document deleted", zap.String("document_id", id), zap.Int("vectors_removed", removed))
	return nil
}

// Reprocess queues a fresh ingestion run. The pipeline always restarts
// from extract, so this works for failed and for already indexed documents
// alike.
func (s *DocumentService) Reprocess(ctx context.Context, userID, workspaceID, id string) (string, error) {
	if _, err := s.Get(ctx, userID, workspaceID, id); err != nil {
		return "", err
	}
	if err := s.documents.UpdateStatus(ctx, id, model.DocStatusUploaded); err != nil {
		return "", err
	}
	return s.dispatcher.EnqueueIngest(ctx, id)
}

// Reindex queues a rebuild of the workspace's slice of the vector index.
func (s *DocumentService) Reindex(ctx context.Context, userID, workspaceID string) (string, error) {
	if _, err := s.workspaces.GetByOwner(ctx, userID, workspaceID); err != nil {
		return "", err
	}
	return s.dispatcher.EnqueueReindex(ctx, workspaceID)
}
