package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/storage"
)

const auditWriteTimeout = 2 * time.Second

// AuditService records auth events off the request path. A failed write is
// logged and swallowed: the audit trail must never block or fail an auth
// response.
type AuditService struct {
	repo storage.AuditRepository
	log  *zap.SugaredLogger
}

func NewAuditService(repo storage.AuditRepository, log *zap.SugaredLogger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

func (s *AuditService) Record(action, userID string, meta models.ClientMeta, detail string) {
	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()

		if err := s.repo.InsertAuditEntry(ctx, entry); err != nil {
			s.log.Errorw("failed to write audit entry", "action", action, "error", err)
		}
	}()
}
