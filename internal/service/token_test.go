package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementhub/auth-service/internal/util"
)

func newTestTokenService() *TokenService {
	return NewTokenService(&util.TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.IssueAccessToken("user-1", time.Now().UTC())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := ts.Verify(token, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestIssueAndVerifyRefreshToken(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.IssueRefreshToken("user-1", time.Now().UTC())
	require.NoError(t, err)

	subject, err := ts.Verify(token, RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	ts := newTestTokenService()
	now := time.Now().UTC()

	accessToken, err := ts.IssueAccessToken("user-1", now)
	require.NoError(t, err)
	refreshToken, err := ts.IssueRefreshToken("user-1", now)
	require.NoError(t, err)

	_, err = ts.Verify(accessToken, RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = ts.Verify(refreshToken, AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyExpiredToken(t *testing.T) {
	ts := newTestTokenService()

	// Issued far enough in the past that the TTL and leeway are both long
	// gone.
	token, err := ts.IssueAccessToken("user-1", time.Now().UTC().Add(-48*time.Hour))
	require.NoError(t, err)

	_, err = ts.Verify(token, AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyTamperedToken(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.IssueAccessToken("user-1", time.Now().UTC())
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "xxxx"
	_, err = ts.Verify(tampered, AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyMalformedToken(t *testing.T) {
	ts := newTestTokenService()

	for _, input := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := ts.Verify(input, AccessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid, "input %q", input)
	}
}

func TestVerifyWrongSecretFails(t *testing.T) {
	ts := newTestTokenService()
	other := NewTokenService(&util.TokenConfig{
		AccessSecret:  []byte("completely-different-secret"),
		RefreshSecret: []byte("another-different-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})

	token, err := ts.IssueAccessToken("user-1", time.Now().UTC())
	require.NoError(t, err)

	_, err = other.Verify(token, AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
