package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/storage"
	"github.com/placementhub/auth-service/internal/util"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrTokenReuseDetected means the presented refresh token no longer
	// matches the subject's fast-check reference: it was already rotated,
	// or forged.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")

	ErrSessionRevoked   = errors.New("session revoked or expired")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrValidation       = errors.New("validation failed")
	ErrEmailTaken       = errors.New("email address already exists")
	ErrPhoneTaken       = errors.New("phone number already exists")
)

var (
	gmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@gmail\.com$`)
	phoneRegex = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// AuthService is the session lifecycle manager: it creates sessions on
// login/register, rotates them on refresh, and revokes them on logout. All
// durable state lives behind the storage interfaces; the service itself
// holds no mutable state, so concurrent requests only contend inside the
// store.
type AuthService struct {
	storage      storage.Storage
	tokens       *TokenService
	audit        *AuditService
	webhook      *WebhookService
	validate     *validator.Validate
	log          *zap.SugaredLogger
	absoluteTTL  time.Duration
	storeTimeout time.Duration
}

func NewAuthService(
	st storage.Storage,
	tokens *TokenService,
	audit *AuditService,
	webhook *WebhookService,
	cfg *util.SessionConfig,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		storage:      st,
		tokens:       tokens,
		audit:        audit,
		webhook:      webhook,
		validate:     validator.New(),
		log:          log,
		absoluteTTL:  cfg.AbsoluteTTL,
		storeTimeout: cfg.StoreTimeout,
	}
}

// Register creates a student account and immediately opens a session, same
// contract as Login.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, meta models.ClientMeta) (*models.AuthResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !gmailRegex.MatchString(req.Email) {
		return nil, fmt.Errorf("%w: please enter a valid Gmail address", ErrValidation)
	}
	if !phoneRegex.MatchString(req.Phone) {
		return nil, fmt.Errorf("%w: please enter a valid 10-digit Indian phone number", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	skills := req.Skills
	if skills == nil {
		skills = []string{}
	}

	user := models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		Profile: models.Profile{
			Student: &models.StudentProfile{
				Course:  req.Course,
				College: req.College,
				Year:    req.Year,
				Skills:  skills,
			},
		},
	}

	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	created, err := s.storage.CreateUser(cctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		if errors.Is(err, storage.ErrDuplicatePhone) {
			return nil, ErrPhoneTaken
		}
		return nil, s.storeFailure(err)
	}

	result, err := s.openSession(ctx, created, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(models.AuditActionRegister, created.ID, meta, "")
	return result, nil
}

// Login authenticates the credentials and opens a session: both tokens are
// minted, the fast-check reference is stamped on the user, and a session
// record with the absolute expiry ceiling is inserted.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, meta models.ClientMeta) (*models.AuthResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.storage.GetUserByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, s.storeFailure(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	result, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(models.AuditActionLogin, user.ID, meta, "")
	return result, nil
}

// Refresh is the critical path: verify, fast-check, session check, then
// the atomic rotation. A presented token that fails any check mutates
// nothing. Refresh is deliberately not idempotent -- a duplicate of an
// already-rotated token is treated as reuse, not re-served the latest
// pair.
func (s *AuthService) Refresh(ctx context.Context, presented string, meta models.ClientMeta) (*models.AuthResult, error) {
	userID, err := s.tokens.Verify(presented, RefreshToken)
	if err != nil {
		return nil, err
	}

	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.storage.GetUserByID(cctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, s.storeFailure(err)
	}

	if user.RefreshTokenRef != presented {
		s.handleReuse(user, meta)
		return nil, ErrTokenReuseDetected
	}

	session, err := s.storage.GetSessionByRef(cctx, presented)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, s.storeFailure(err)
	}

	now := time.Now().UTC()
	if !session.IsValid || now.After(session.ExpiresAt) {
		return nil, ErrSessionRevoked
	}

	newRefresh, err := s.tokens.IssueRefreshToken(user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	rctx, rcancel := s.storeCtx(ctx)
	defer rcancel()

	if err := s.storage.RotateSession(rctx, user.ID, presented, newRefresh, meta); err != nil {
		if errors.Is(err, storage.ErrRotationConflict) {
			// Lost a race against a concurrent refresh of the same token.
			// The winner's rotation stands; this attempt is rejected like
			// any other stale token.
			return nil, ErrTokenReuseDetected
		}
		return nil, s.storeFailure(err)
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.audit.Record(models.AuditActionRefresh, user.ID, meta, "")

	return &models.AuthResult{
		User:         user.Info(),
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
	}, nil
}

// Logout revokes the session behind the presented token. Every path is
// idempotent: an absent, malformed or already-revoked token still yields
// success.
func (s *AuthService) Logout(ctx context.Context, presented string, meta models.ClientMeta) error {
	if presented == "" {
		return nil
	}

	// Best-effort subject extraction for the audit trail; a garbage token
	// still gets its (anonymous) session revoked by reference.
	userID, _ := s.tokens.Verify(presented, RefreshToken)

	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.storage.RevokeSession(cctx, presented); err != nil {
		return s.storeFailure(err)
	}

	s.audit.Record(models.AuditActionLogout, userID, meta, "")
	return nil
}

// Me re-reads the identity record so the response reflects the current
// role and profile, not whatever was true when the token was minted.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.storage.GetUserByID(cctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, s.storeFailure(err)
	}

	info := user.Info()
	return &info, nil
}

// UserFromAccessToken backs the bearer middleware: verify the access
// token, then load the live record for authorization decisions.
func (s *AuthService) UserFromAccessToken(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Verify(token, AccessToken)
	if err != nil {
		return nil, err
	}

	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.storage.GetUserByID(cctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, s.storeFailure(err)
	}
	return user, nil
}

// UpdateProfile merges the provided fields into the user's profile,
// leaving omitted fields untouched.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.UserInfo, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.storage.GetUserByID(cctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, s.storeFailure(err)
	}

	name := user.Name
	if req.Name != "" {
		name = req.Name
	}

	profile := user.Profile
	if user.Role == models.RoleStudent {
		sp := models.StudentProfile{}
		if profile.Student != nil {
			sp = *profile.Student
		}
		if req.Course != "" {
			sp.Course = req.Course
		}
		if req.College != "" {
			sp.College = req.College
		}
		if req.Year != "" {
			sp.Year = req.Year
		}
		if req.Skills != nil {
			sp.Skills = req.Skills
		}
		profile.Student = &sp
	}

	uctx, ucancel := s.storeCtx(ctx)
	defer ucancel()

	updated, err := s.storage.UpdateProfile(uctx, userID, name, profile)
	if err != nil {
		return nil, s.storeFailure(err)
	}

	info := updated.Info()
	return &info, nil
}

// ChangePassword re-hashes the password and forces re-login everywhere by
// invalidating every session of the subject.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest, meta models.ClientMeta) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.storage.GetUserByID(cctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}
		return s.storeFailure(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	uctx, ucancel := s.storeCtx(ctx)
	defer ucancel()

	if err := s.storage.UpdatePassword(uctx, userID, string(hash)); err != nil {
		return s.storeFailure(err)
	}

	if err := s.storage.InvalidateUserSessions(uctx, userID, ""); err != nil {
		s.log.Errorw("failed to invalidate sessions after password change", "userID", userID, "error", err)
	}

	s.audit.Record(models.AuditActionPasswordSet, userID, meta, "")
	return nil
}

// CreateUser is the admin path for provisioning recruiter and admin
// accounts. No session is opened for the new user.
func (s *AuthService) CreateUser(ctx context.Context, req models.CreateUserRequest, createdBy string, meta models.ClientMeta) (*models.UserInfo, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if req.Role == models.RoleRecruiter {
		user.Profile.Recruiter = &models.RecruiterProfile{
			CompanyID:   req.CompanyID,
			Designation: req.Designation,
		}
	}

	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	created, err := s.storage.CreateUser(cctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, s.storeFailure(err)
	}

	s.audit.Record(models.AuditActionUserCreated, createdBy, meta, "created "+string(created.Role)+" "+created.Email)

	info := created.Info()
	return &info, nil
}

// openSession mints the token pair and persists the session + fast-check
// reference atomically. The session's ExpiresAt is fixed here and never
// extended by later rotations.
func (s *AuthService) openSession(ctx context.Context, user *models.User, meta models.ClientMeta) (*models.AuthResult, error) {
	now := time.Now().UTC()

	accessToken, err := s.tokens.IssueAccessToken(user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	session := models.Session{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		RefreshTokenRef: refreshToken,
		IPAddress:       meta.IPAddress,
		UserAgent:       meta.UserAgent,
		IsValid:         true,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.absoluteTTL),
	}

	cctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.storage.CreateSession(cctx, session); err != nil {
		return nil, s.storeFailure(err)
	}

	return &models.AuthResult{
		User:         user.Info(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// handleReuse limits the blast radius of a leaked refresh token: every
// session of the subject except the legitimately rotated chain is
// invalidated. The invalidation is synchronous -- the 403 must not win a
// race against it -- while the audit and webhook writes stay
// fire-and-forget. It runs on a detached context: the client that tripped
// the alarm must not be able to cancel the containment by hanging up.
func (s *AuthService) handleReuse(user *models.User, meta models.ClientMeta) {
	s.log.Warnw("refresh token reuse detected", "userID", user.ID, "ip", meta.IPAddress)

	cctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()

	if err := s.storage.InvalidateUserSessions(cctx, user.ID, user.RefreshTokenRef); err != nil {
		s.log.Errorw("failed to invalidate sessions after reuse", "userID", user.ID, "error", err)
	}

	s.audit.Record(models.AuditActionReuseAlert, user.ID, meta, "other sessions invalidated")
	s.webhook.Notify(SecurityEvent{
		Event:     "refresh_token_reuse",
		UserID:    user.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeFailure translates unexpected store errors (timeouts, connection
// loss) into ErrStoreUnavailable. A timed-out rotation is a failed
// rotation: the client retries or falls back to login, never assumes
// success.
func (s *AuthService) storeFailure(err error) error {
	s.log.Errorw("store operation failed", "error", err)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
