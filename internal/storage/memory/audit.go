package memory

import (
	"context"
	"sync"

	"github.com/placementhub/auth-service/internal/models"
)

type AuditRecorder struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

func (r *AuditRecorder) InsertAuditEntry(_ context.Context, entry models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	return nil
}

func (r *AuditRecorder) Entries() []models.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
