package job

import (
	"context"
	"time"

	"github.com/paperbotai/paperbot/internal/repo"
)

type AuditCleanupJob struct {
	audit         *repo.AuditRepo
	retentionDays int
}

func NewAuditCleanupJob(audit *repo.AuditRepo, retentionDays int) *AuditCleanupJob {
	return &AuditCleanupJob{audit: audit, retentionDays: retentionDays}
}

func (j *AuditCleanupJob) Name() string {
	return "audit_cleanup"
}

func (j *AuditCleanupJob) Run(ctx context.Context) error {
	if j.audit == nil {
		return nil
	}
	retentionDays := j.retentionDays
	if retentionDays <= 0 {
		retentionDays = 90
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour).Unix()
	_, err := j.audit.DeleteBefore(ctx, cutoff)
	return err
}
