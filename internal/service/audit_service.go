package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/model"
	"github.com/paperbotai/paperbot/internal/repo"
)

type requestMetaKey struct{}

// RequestMeta carries the client facts recorded on audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

type AuditService struct {
	entries *repo.AuditRepo
}

func NewAuditService(entries *repo.AuditRepo) *AuditService {
	return &AuditService{entries: entries}
}

// Record writes an audit entry. Auditing is best-effort: a write failure is
// logged and never fails the operation being audited.
func (s *AuditService) Record(ctx context.Context, userID, action, resourceType, resourceID string, metadata map[string]interface{}) {
	meta := requestMetaFrom(ctx)
	entry := &model.AuditLog{
		ID:           uuid.NewString(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Metadata:     metadata,
		Ctime:        time.Now().Unix(),
	}
	if err := s.entries.Insert(ctx, entry); err != nil {
		logutil.GetLogger(ctx).Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *AuditService) ListByUser(ctx context.Context, userID string, limit int) ([]model.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.entries.ListByUser(ctx, userID, limit)
}
