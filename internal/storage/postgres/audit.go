package postgres

import (
	"context"
	"fmt"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/storage"
)

type AuditRepository struct {
	db storage.DBTX
}

func NewAuditRepository(db storage.DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertAuditEntry(ctx context.Context, entry models.AuditEntry) error {
	query := `INSERT INTO audit_log (id, user_id, action, ip_address, user_agent, detail, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.IPAddress,
		entry.UserAgent,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
