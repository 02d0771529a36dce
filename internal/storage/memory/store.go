package memory

import (
	"context"
	"sync"
	"time"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/storage"
)

// Store keeps users and sessions in maps guarded by one mutex, so the
// compound lifecycle writes get the same all-or-nothing behavior the
// postgres transactions provide. Used in tests and local development.
type Store struct {
	mu       sync.Mutex
	users    map[string]*models.User
	byEmail  map[string]string
	byPhone  map[string]string
	sessions map[string]*models.Session
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*models.User),
		byEmail:  make(map[string]string),
		byPhone:  make(map[string]string),
		sessions: make(map[string]*models.Session),
	}
}

func (s *Store) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return nil, storage.ErrDuplicateEmail
	}
	if user.Phone != "" {
		if _, ok := s.byPhone[user.Phone]; ok {
			return nil, storage.ErrDuplicatePhone
		}
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	u := user
	s.users[u.ID] = &u
	s.byEmail[u.Email] = u.ID
	if u.Phone != "" {
		s.byPhone[u.Phone] = u.ID
	}

	copied := u
	return &copied, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPhone[phone]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, name string, profile models.Profile) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	user.Name = name
	user.Profile = profile
	user.UpdatedAt = time.Now().UTC()
	u := *user
	return &u, nil
}

func (s *Store) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) GetSessionByRef(_ context.Context, ref string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[ref]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	sess := *session
	return &sess, nil
}

func (s *Store) CreateSession(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[session.UserID]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.RefreshTokenRef = session.RefreshTokenRef
	if session.IPAddress != "" {
		user.LastLoginIP = session.IPAddress
	}

	sess := session
	s.sessions[sess.RefreshTokenRef] = &sess
	return nil
}

func (s *Store) RotateSession(_ context.Context, userID, oldRef, newRef string, meta models.ClientMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok || user.RefreshTokenRef != oldRef {
		return storage.ErrRotationConflict
	}

	session, ok := s.sessions[oldRef]
	if !ok || !session.IsValid || time.Now().UTC().After(session.ExpiresAt) {
		return storage.ErrRotationConflict
	}
	if _, exists := s.sessions[newRef]; exists {
		return storage.ErrRotationConflict
	}

	user.RefreshTokenRef = newRef
	session.RefreshTokenRef = newRef
	session.IPAddress = meta.IPAddress
	session.UserAgent = meta.UserAgent
	delete(s.sessions, oldRef)
	s.sessions[newRef] = session

	return nil
}

func (s *Store) RevokeSession(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.RefreshTokenRef == ref {
			user.RefreshTokenRef = ""
		}
	}
	if session, ok := s.sessions[ref]; ok {
		session.IsValid = false
	}
	return nil
}

func (s *Store) InvalidateUserSessions(_ context.Context, userID, exceptRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, session := range s.sessions {
		if session.UserID == userID && ref != exceptRef {
			session.IsValid = false
		}
	}
	if exceptRef == "" {
		if user, ok := s.users[userID]; ok {
			user.RefreshTokenRef = ""
		}
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for ref, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, ref)
			deleted++
		}
	}
	return deleted, nil
}
