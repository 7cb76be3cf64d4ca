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

type WorkspaceService struct {
	workspaces *repo.WorkspaceRepo
	audit      *AuditService
}

func NewWorkspaceService(workspaces *repo.WorkspaceRepo, audit *AuditService) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces, audit: audit}
}

func (s *WorkspaceService) Create(ctx context.Context, ownerID, name, description string) (*model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	now := time.Now().Unix()
	ws := &model.Workspace{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, ownerID, model.AuditWorkspaceCreate, "workspace", ws.ID, nil)
	return ws, nil
}

func (s *WorkspaceService) Get(ctx context.Context, ownerID, id string) (*model.Workspace, error) {
	return s.workspaces.GetByOwner(ctx, ownerID, id)
}

func (s *WorkspaceService) List(ctx context.Context, ownerID string) ([]model.Workspace, error) {
	return s.workspaces.ListByOwner(ctx, ownerID)
}

func (s *WorkspaceService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.workspaces.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.audit.Record(ctx, ownerID, model.AuditWorkspaceDelete, "workspace", id, nil)
	logutil.GetLogger(ctx).Info("workspace deleted", zap.String("workspace_id", id))
	return nil
}
