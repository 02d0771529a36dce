package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/storage"
)

type Storage struct {
	db *sql.DB
	*UserRepository
	*SessionRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                db,
		UserRepository:    NewUserRepository(db),
		SessionRepository: NewSessionRepository(db),
	}
}

// CreateSession persists a fresh session and stamps the user's fast-check
// reference in one transaction, so a login never leaves the two stores
// disagreeing about the current token.
func (s *Storage) CreateSession(ctx context.Context, session models.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionRepoTx := NewSessionRepository(tx)

	n, err := setRefreshRef(ctx, tx, session.UserID, session.RefreshTokenRef, session.IPAddress)
	if err != nil {
		return fmt.Errorf("failed to set refresh ref in tx: %w", err)
	}
	if n == 0 {
		return storage.ErrUserNotFound
	}

	if err := sessionRepoTx.insertSession(ctx, session); err != nil {
		return fmt.Errorf("failed to create session in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// RotateSession performs the compound refresh write: the conditional swap
// on the user row and on the session row must both hit exactly one row, or
// the whole rotation rolls back. A torn rotation would leave two
// valid-looking refresh tokens in circulation, which is the main hazard
// here.
func (s *Storage) RotateSession(ctx context.Context, userID, oldRef, newRef string, meta models.ClientMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionRepoTx := NewSessionRepository(tx)

	query := `UPDATE users SET refresh_token_ref = $3, updated_at = now() WHERE id = $1 AND refresh_token_ref = $2`
	res, err := tx.ExecContext(ctx, query, userID, oldRef, newRef)
	if err != nil {
		return fmt.Errorf("failed to swap user refresh ref in tx: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return storage.ErrRotationConflict
	}

	n, err := sessionRepoTx.rotateSessionRef(ctx, oldRef, newRef, meta)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return storage.ErrRotationConflict
		}
		return fmt.Errorf("failed to rotate session in tx: %w", err)
	}
	if n == 0 {
		return storage.ErrRotationConflict
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// RevokeSession clears the fast-check reference of whichever user still
// holds ref and marks the session invalid. Both writes tolerate a ref
// that was already cleared, so logout stays idempotent.
func (s *Storage) RevokeSession(ctx context.Context, ref string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionRepoTx := NewSessionRepository(tx)

	query := `UPDATE users SET refresh_token_ref = NULL, updated_at = now() WHERE refresh_token_ref = $1`
	if _, err := tx.ExecContext(ctx, query, ref); err != nil {
		return fmt.Errorf("failed to clear user refresh ref in tx: %w", err)
	}

	if err := sessionRepoTx.invalidateSession(ctx, ref); err != nil {
		return fmt.Errorf("failed to invalidate session in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// InvalidateUserSessions revokes the subject's sessions, optionally
// sparing the one holding exceptRef. The full revocation (empty
// exceptRef) also clears the fast-check reference so no stale ref
// survives the purge.
func (s *Storage) InvalidateUserSessions(ctx context.Context, userID, exceptRef string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE sessions SET is_valid = false WHERE user_id = $1 AND refresh_token_ref <> $2`
	if _, err := tx.ExecContext(ctx, query, userID, exceptRef); err != nil {
		return fmt.Errorf("failed to invalidate user sessions in tx: %w", err)
	}

	if exceptRef == "" {
		query := `UPDATE users SET refresh_token_ref = NULL, updated_at = now() WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, userID); err != nil {
			return fmt.Errorf("failed to clear user refresh ref in tx: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

const sweepTimeout = 30 * time.Second

// StartSweeper deletes sessions past their absolute ceiling on a fixed
// interval until ctx is cancelled. Expiry is store-level housekeeping, not
// application logic: refresh already rejects expired sessions on read.
func (s *Storage) StartSweeper(ctx context.Context, interval time.Duration, log *zap.SugaredLogger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sctx, cancel := context.WithTimeout(ctx, sweepTimeout)
				n, err := s.DeleteExpiredSessions(sctx, time.Now().UTC())
				cancel()
				if err != nil {
					log.Errorw("session sweep failed", "error", err)
					continue
				}
				if n > 0 {
					log.Infow("swept expired sessions", "deleted", n)
				}
			}
		}
	}()
}
