package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/model"
)

var sessionRowColumns = []string{"id", "user_id", "token_hash", "ip_address", "user_agent", "created_at", "expires_at", "revoked_at"}

func TestSessionCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	s := &model.Session{
		ID: "s-1", UserID: "u-1", TokenHash: "abc", IPAddress: "10.0.0.1", UserAgent: "curl",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec(`^INSERT INTO sessions`).
		WithArgs(s.ID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.CreatedAt, s.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionGetByTokenHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM sessions WHERE token_hash = \?`).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("s-1", "u-1", "abc", "", "", now, now.Add(time.Hour), nil))

	got, err := repo.GetByTokenHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.ID)
	assert.Nil(t, got.RevokedAt)
	assert.True(t, got.Valid(now))
}

func TestSessionGetByTokenHashRevoked(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM sessions WHERE token_hash = \?`).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("s-1", "u-1", "abc", "", "", now, now.Add(time.Hour), now))

	got, err := repo.GetByTokenHash(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.False(t, got.Valid(now))
}

func TestSessionGetByTokenHashNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`FROM sessions WHERE token_hash = \?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByTokenHash(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRevoke(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(`^UPDATE sessions SET revoked_at = \? WHERE id = \? AND revoked_at IS NULL`).
		WithArgs(at, "s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Revoke(context.Background(), "s-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
