package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/placementhub/auth-service/internal/util"
)

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

// TokenClass selects which secret and lifetime a token is minted and
// verified against. The two classes are never interchangeable.
type TokenClass int

const (
	AccessToken TokenClass = iota
	RefreshToken
)

// TokenService mints and verifies both token classes. It is stateless: a
// pure function of its config, the clock and the input.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenService(cfg *util.TokenConfig) *TokenService {
	return &TokenService{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}
}

func (ts *TokenService) IssueAccessToken(userID string, now time.Time) (string, error) {
	return ts.issue(userID, now, ts.accessSecret, ts.accessTTL)
}

func (ts *TokenService) IssueRefreshToken(userID string, now time.Time) (string, error) {
	return ts.issue(userID, now, ts.refreshSecret, ts.refreshTTL)
}

func (ts *TokenService) issue(userID string, now time.Time, secret []byte, ttl time.Duration) (string, error) {
	// The jti claim makes every minted token unique, even two tokens for
	// the same subject within the same second. Rotation relies on the new
	// token differing from the one it replaces.
	claims := &jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}

	return signedToken, nil
}

// Verify checks signature and expiry against the secret of the given class
// and returns the subject. Nothing beyond the subject is trusted: role and
// profile are always re-read from the credential store, so a token never
// outlives a role change.
func (ts *TokenService) Verify(token string, class TokenClass) (string, error) {
	secret := ts.accessSecret
	if class == RefreshToken {
		secret = ts.refreshSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return secret, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if parsedToken == nil || !parsedToken.Valid {
		return "", ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrTokenInvalid
	}

	return claims.Subject, nil
}
