package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/storage"
)

type SessionRepository struct {
	db storage.DBTX
}

func NewSessionRepository(db storage.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, user_id, refresh_token_ref, ip_address, user_agent, is_valid, created_at, expires_at`

func (r *SessionRepository) insertSession(ctx context.Context, session models.Session) error {
	query := `INSERT INTO sessions (id, user_id, refresh_token_ref, ip_address, user_agent, is_valid, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshTokenRef,
		session.IPAddress,
		session.UserAgent,
		session.IsValid,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSessionByRef(ctx context.Context, ref string) (*models.Session, error) {
	var session models.Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token_ref = $1`
	err := r.db.QueryRowContext(ctx, query, ref).Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshTokenRef,
		&session.IPAddress,
		&session.UserAgent,
		&session.IsValid,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// rotateSessionRef swaps the reference on the live session row. The
// conditional WHERE makes concurrent rotations of the same token race on
// the database: exactly one UPDATE matches, the rest see zero rows.
// expires_at is deliberately untouched.
func (r *SessionRepository) rotateSessionRef(ctx context.Context, oldRef, newRef string, meta models.ClientMeta) (int64, error) {
	query := `UPDATE sessions SET refresh_token_ref = $2, ip_address = $3, user_agent = $4
		WHERE refresh_token_ref = $1 AND is_valid = true AND expires_at > now()`
	res, err := r.db.ExecContext(ctx, query, oldRef, newRef, meta.IPAddress, meta.UserAgent)
	if err != nil {
		return 0, fmt.Errorf("rotate session ref: %w", err)
	}
	return res.RowsAffected()
}

func (r *SessionRepository) invalidateSession(ctx context.Context, ref string) error {
	query := `UPDATE sessions SET is_valid = false WHERE refresh_token_ref = $1`
	if _, err := r.db.ExecContext(ctx, query, ref); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions is the physical garbage collection behind the
// logical is_valid flag; it only fires once the absolute ceiling passed.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
