package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/storage"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStorage(db), mock
}

func TestCreateSessionTransaction(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token_ref = NULLIF($2, '')`)).
		WithArgs("u1", "ref-1", "203.0.113.7").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).
		WithArgs("s1", "u1", "ref-1", "203.0.113.7", "agent", true, now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.CreateSession(context.Background(), models.Session{
		ID:              "s1",
		UserID:          "u1",
		RefreshTokenRef: "ref-1",
		IPAddress:       "203.0.113.7",
		UserAgent:       "agent",
		IsValid:         true,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSessionUnknownUser(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token_ref = NULLIF($2, '')`)).
		WithArgs("ghost", "ref-1", "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.CreateSession(context.Background(), models.Session{UserID: "ghost", RefreshTokenRef: "ref-1"})
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateSessionCommits(t *testing.T) {
	s, mock := newMockStorage(t)
	meta := models.ClientMeta{IPAddress: "203.0.113.7", UserAgent: "agent"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token_ref = $3, updated_at = now() WHERE id = $1 AND refresh_token_ref = $2`)).
		WithArgs("u1", "ref-old", "ref-new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET refresh_token_ref = $2`)).
		WithArgs("ref-old", "ref-new", meta.IPAddress, meta.UserAgent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RotateSession(context.Background(), "u1", "ref-old", "ref-new", meta)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateSessionConflictOnUserRow(t *testing.T) {
	s, mock := newMockStorage(t)

	// The fast-check reference moved on: the conditional swap matches no
	// row and the whole rotation rolls back.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token_ref = $3`)).
		WithArgs("u1", "ref-stale", "ref-new").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.RotateSession(context.Background(), "u1", "ref-stale", "ref-new", models.ClientMeta{})
	assert.ErrorIs(t, err, storage.ErrRotationConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateSessionConflictOnSessionRow(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token_ref = $3`)).
		WithArgs("u1", "ref-old", "ref-new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET refresh_token_ref = $2`)).
		WithArgs("ref-old", "ref-new", "", "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.RotateSession(context.Background(), "u1", "ref-old", "ref-new", models.ClientMeta{})
	assert.ErrorIs(t, err, storage.ErrRotationConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateSessionConflictOnUniqueViolation(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token_ref = $3`)).
		WithArgs("u1", "ref-old", "ref-new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET refresh_token_ref = $2`)).
		WithArgs("ref-old", "ref-new", "", "").
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "sessions_refresh_token_ref_key"})
	mock.ExpectRollback()

	err := s.RotateSession(context.Background(), "u1", "ref-old", "ref-new", models.ClientMeta{})
	assert.ErrorIs(t, err, storage.ErrRotationConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeSessionTransaction(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token_ref = NULL`)).
		WithArgs("ref-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET is_valid = false WHERE refresh_token_ref = $1`)).
		WithArgs("ref-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	// Zero matched rows is fine: revoking an unknown or already-revoked
	// token still succeeds.
	err := s.RevokeSession(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateUserSessionsSparesExceptRef(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET is_valid = false WHERE user_id = $1 AND refresh_token_ref <> $2`)).
		WithArgs("u1", "ref-current").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := s.InvalidateUserSessions(context.Background(), "u1", "ref-current")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateUserSessionsFullPurgeClearsRef(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET is_valid = false WHERE user_id = $1 AND refresh_token_ref <> $2`)).
		WithArgs("u1", "").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET refresh_token_ref = NULL, updated_at = now() WHERE id = $1`)).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InvalidateUserSessions(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionByRefNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE refresh_token_ref = $1`)).
		WithArgs("ref-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetSessionByRef(context.Background(), "ref-missing")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateMapping(t *testing.T) {
	cases := []struct {
		name       string
		constraint string
		want       error
	}{
		{"email key", "users_email_key", storage.ErrDuplicateEmail},
		{"phone key", "users_phone_key", storage.ErrDuplicatePhone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockStorage(t)

			mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
				WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: tc.constraint})

			_, err := s.CreateUser(context.Background(), models.User{
				ID:    "u1",
				Email: "a@gmail.com",
				Phone: "9876543210",
				Role:  models.RoleStudent,
			})
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetUserByIDScansProfile(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "phone", "password_hash", "role", "refresh_token_ref", "last_login_ip",
		"course", "college", "year", "skills", "resume_url", "company_id", "designation", "created_at", "updated_at",
	}).AddRow(
		"u1", "Asha Rao", "asha.rao@gmail.com", "9876543210", "hash", "student", "ref-1", nil,
		"B.Tech CSE", "NIT Trichy", "2026", pq.StringArray{"go", "sql"}, nil, nil, nil, now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs("u1").
		WillReturnRows(rows)

	user, err := s.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "ref-1", user.RefreshTokenRef)
	require.NotNil(t, user.Profile.Student)
	assert.Equal(t, "NIT Trichy", user.Profile.Student.College)
	assert.Equal(t, []string{"go", "sql"}, []string(user.Profile.Student.Skills))
	assert.Nil(t, user.Profile.Recruiter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordUnknownUser(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET password_hash = $2`)).
		WithArgs("ghost", "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdatePassword(context.Background(), "ghost", "hash")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredSessions(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at < $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteExpiredSessions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweeperRunsOnInterval(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at < $1`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.StartSweeper(ctx, 5*time.Millisecond, zap.NewNop().Sugar())

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 5*time.Millisecond)
}
