package repository

import (
	"context"
	"sync"
	"time"

	"github.com/authgate/authgate/internal/model"
)

// MemoryStore keeps users, sessions and verification tokens in process
// memory. It backs tests and database-less development runs; every method is
// safe for concurrent use and returns copies so callers cannot mutate state.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]*model.User
	usersByEmail  map[string]string
	sessions      map[string]*model.Session
	sessionByHash map[string]string
	verifications map[string]*model.VerificationToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		usersByEmail:  make(map[string]string),
		sessions:      make(map[string]*model.Session),
		sessionByHash: make(map[string]string),
		verifications: make(map[string]*model.VerificationToken),
	}
}

func (s *MemoryStore) Users() *MemoryUserRepository {
	return &MemoryUserRepository{store: s}
}

func (s *MemoryStore) Sessions() *MemorySessionRepository {
	return &MemorySessionRepository{store: s}
}

func (s *MemoryStore) Verifications() *MemoryVerificationRepository {
	return &MemoryVerificationRepository{store: s}
}

// UserCount returns the number of stored users.
func (s *MemoryStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type MemoryUserRepository struct {
	store *MemoryStore
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *model.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByEmail[user.Email]; taken {
		return ErrDuplicateEmail
	}
	u := *user
	s.users[u.ID] = &u
	s.usersByEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

type MemorySessionRepository struct {
	store *MemoryStore
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *model.Session) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.sessions[cp.ID] = &cp
	s.sessionByHash[cp.TokenHash] = cp.ID
	return nil
}

func (r *MemorySessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.sessionByHash[tokenHash]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s.sessions[id]
	if cp.RevokedAt != nil {
		t := *cp.RevokedAt
		cp.RevokedAt = &t
	}
	return &cp, nil
}

func (r *MemorySessionRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok && session.RevokedAt == nil {
		t := at
		session.RevokedAt = &t
	}
	return nil
}

type MemoryVerificationRepository struct {
	store *MemoryStore
}

func (r *MemoryVerificationRepository) Create(ctx context.Context, v *model.VerificationToken) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *v
	s.verifications[cp.TokenHash] = &cp
	return nil
}

func (r *MemoryVerificationRepository) VerifyEmail(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.verifications[tokenHash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if v.UsedAt != nil {
		return nil, ErrTokenUsed
	}
	if v.Expired(now) {
		return nil, ErrTokenExpired
	}
	user, ok := s.users[v.UserID]
	if !ok {
		return nil, ErrUserNotFound
	}

	used := now
	v.UsedAt = &used
	user.EmailVerified = true
	user.UpdatedAt = now

	u := *user
	return &u, nil
}
