package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/model"
)

var (
	ErrTokenNotFound = errors.New("verification token not found")
	ErrTokenUsed     = errors.New("verification token already used")
	ErrTokenExpired  = errors.New("verification token expired")
)

// VerificationRepository handles email verification tokens.
type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create inserts a new verification token.
func (r *VerificationRepository) Create(ctx context.Context, v *model.VerificationToken) error {
	query := `INSERT INTO verification_tokens (id, user_id, token_hash, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, v.ID, v.UserID, v.TokenHash, v.CreatedAt, v.ExpiresAt); err != nil {
		return oops.In("repository").With("user_id", v.UserID).Wrapf(err, "inserting verification token")
	}
	return nil
}

// VerifyEmail consumes the token stored under tokenHash and marks its owner
// verified, both in one transaction. The row lock plus the conditional
// update guarantee a token is consumed at most once.
func (r *VerificationRepository) VerifyEmail(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, oops.In("repository").Wrapf(err, "beginning verification transaction")
	}
	defer tx.Rollback()

	v := &model.VerificationToken{TokenHash: tokenHash}
	var usedAt sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at, used_at FROM verification_tokens WHERE token_hash = ? FOR UPDATE`,
		tokenHash,
	).Scan(&v.ID, &v.UserID, &v.CreatedAt, &v.ExpiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, oops.In("repository").Wrapf(err, "selecting verification token")
	}

	if usedAt.Valid {
		return nil, ErrTokenUsed
	}
	if v.Expired(now) {
		return nil, ErrTokenExpired
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE verification_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`, now, v.ID,
	)
	if err != nil {
		return nil, oops.In("repository").With("token_id", v.ID).Wrapf(err, "consuming verification token")
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, oops.In("repository").Wrapf(err, "reading affected rows")
	} else if n == 0 {
		return nil, ErrTokenUsed
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = ? WHERE id = ?`, now, v.UserID,
	); err != nil {
		return nil, oops.In("repository").With("user_id", v.UserID).Wrapf(err, "marking email verified")
	}

	user, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, v.UserID))
	if err != nil {
		return nil, oops.In("repository").With("user_id", v.UserID).Wrapf(err, "reloading verified user")
	}

	if err := tx.Commit(); err != nil {
		return nil, oops.In("repository").Wrapf(err, "committing verification")
	}
	return user, nil
}
