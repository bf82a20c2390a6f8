package service

import (
	"context"
	"errors"
	"net/url"

	"github.com/google/uuid"

	"github.com/authgate/authgate/internal/crypto"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/mail"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/repository"
)

// VerifyResult carries the verified user, plus a session when automatic
// sign-in after verification is enabled.
type VerifyResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// VerifyEmail consumes a verification token. A token verifies its owner at
// most once; later attempts fail with ErrTokenUsed.
func (s *AuthService) VerifyEmail(ctx context.Context, token string, client ClientMeta) (*VerifyResult, error) {
	if !crypto.ValidOpaqueToken(token) {
		return nil, ErrTokenInvalid
	}

	user, err := s.verifications.VerifyEmail(ctx, crypto.HashOpaqueToken(token), s.now().UTC())
	switch {
	case errors.Is(err, repository.ErrTokenNotFound), errors.Is(err, repository.ErrUserNotFound):
		return nil, ErrTokenInvalid
	case errors.Is(err, repository.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, repository.ErrTokenUsed):
		return nil, ErrTokenUsed
	case err != nil:
		return nil, err
	}

	result := &VerifyResult{User: user}
	if s.opts.AutoSignInAfterVerification {
		session, token, err := s.createSession(ctx, user, client)
		if err != nil {
			return nil, err
		}
		result.Session, result.Token = session, token
	}
	return result, nil
}

// SendVerificationEmail sends a fresh verification link. Unknown and
// already verified addresses succeed silently.
func (s *AuthService) SendVerificationEmail(ctx context.Context, email, callbackURL string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.CheckCallbackURL(callbackURL); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	s.sendVerification(ctx, user, callbackURL)
	return nil
}

// sendVerification stores a new token and dispatches the link. Failures are
// logged and never reach the caller.
func (s *AuthService) sendVerification(ctx context.Context, user *model.User, callbackURL string) {
	token, hash, err := crypto.NewOpaqueToken()
	if err != nil {
		logging.Error(ctx, s.logger, "generating verification token", err, "user_id", user.ID)
		return
	}

	now := s.now().UTC()
	v := &model.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.VerificationTTL),
	}
	if err := s.verifications.Create(ctx, v); err != nil {
		logging.Error(ctx, s.logger, "storing verification token", err, "user_id", user.ID)
		return
	}

	msg, err := mail.NewVerificationMessage(user.Email, user.Name, s.opts.MailSubject, s.verificationLink(token, callbackURL))
	if err != nil {
		logging.Error(ctx, s.logger, "rendering verification email", err, "user_id", user.ID)
		return
	}
	s.mailer.Dispatch(ctx, msg)
}

func (s *AuthService) verificationLink(token, callbackURL string) string {
	q := url.Values{}
	q.Set("token", token)
	if callbackURL != "" {
		q.Set("callbackURL", callbackURL)
	}
	return s.opts.BaseURL + s.opts.VerificationPath + "?" + q.Encode()
}
