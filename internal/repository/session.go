package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository handles session persistence operations.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	query := `INSERT INTO sessions (id, user_id, token_hash, ip_address, user_agent, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return oops.In("repository").With("user_id", s.UserID).Wrapf(err, "inserting session")
	}
	return nil
}

// GetByTokenHash returns the session stored under tokenHash, revoked or not.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	query := `SELECT id, user_id, token_hash, ip_address, user_agent, created_at, expires_at, revoked_at
		FROM sessions WHERE token_hash = ?`

	s := &model.Session{}
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.ExpiresAt, &revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, oops.In("repository").Wrapf(err, "selecting session")
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	return s, nil
}

// Revoke marks the session revoked at the given time. Revoking an already
// revoked session keeps its first revocation time.
func (r *SessionRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return oops.In("repository").With("session_id", id).Wrapf(err, "revoking session")
	}
	return nil
}
