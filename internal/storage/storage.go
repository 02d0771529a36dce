package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/placementhub/auth-service/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrDuplicateEmail  = errors.New("email already exists")
	ErrDuplicatePhone  = errors.New("phone already exists")

	// ErrRotationConflict means the conditional rotation matched zero rows:
	// another request already rotated (or revoked) the presented reference.
	// The loser of a refresh race gets this instead of silently overwriting
	// the winner's token.
	ErrRotationConflict = errors.New("refresh token already rotated")
)

// DBTX is satisfied by *sql.DB and *sql.Tx so repositories can run inside
// or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, name string, profile models.Profile) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type SessionRepository interface {
	GetSessionByRef(ctx context.Context, ref string) (*models.Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionLifecycle groups the compound writes that must be atomic with
// respect to concurrent refresh attempts on the same reference. Postgres
// runs them in a transaction; the in-memory store under one lock.
type SessionLifecycle interface {
	// CreateSession sets the user's fast-check reference and inserts the
	// session record in one unit.
	CreateSession(ctx context.Context, session models.Session) error
	// RotateSession conditionally swaps oldRef for newRef on both the user
	// row and the session row, refreshing client metadata. Returns
	// ErrRotationConflict when oldRef is no longer current.
	RotateSession(ctx context.Context, userID, oldRef, newRef string, meta models.ClientMeta) error
	// RevokeSession clears the fast-check reference and invalidates the
	// session holding ref. Idempotent: a stale or unknown ref is a no-op.
	RevokeSession(ctx context.Context, ref string) error
	// InvalidateUserSessions marks the subject's sessions invalid. A
	// non-empty exceptRef spares the session holding that reference (used
	// by reuse detection to keep the one legitimately rotated chain
	// alive); an empty exceptRef revokes everything and clears the
	// fast-check reference.
	InvalidateUserSessions(ctx context.Context, userID, exceptRef string) error
}

type Storage interface {
	UserRepository
	SessionRepository
	SessionLifecycle
}

type AuditRepository interface {
	InsertAuditEntry(ctx context.Context, entry models.AuditEntry) error
}
