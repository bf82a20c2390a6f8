package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/crypto"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/repository"
)

type SessionResult struct {
	Session *model.Session
	User    *model.User
}

type TokenResult struct {
	Token     string
	ExpiresAt time.Time
}

// GetSession resolves a raw session token. Missing, malformed, unknown,
// expired and revoked tokens all yield ErrUnauthenticated.
func (s *AuthService) GetSession(ctx context.Context, token string) (*SessionResult, error) {
	if !crypto.ValidOpaqueToken(token) {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.GetByTokenHash(ctx, crypto.HashOpaqueToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !session.Valid(s.now()) {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return &SessionResult{Session: session, User: user}, nil
}

// IssueToken derives a JWT from a valid session. The JWT never outlives the
// session.
func (s *AuthService) IssueToken(ctx context.Context, sessionToken string) (*TokenResult, error) {
	res, err := s.GetSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	jwt, expiresAt, err := s.issuer.Issue(crypto.TokenSubject{
		UserID:           res.User.ID,
		SessionID:        res.Session.ID,
		Email:            res.User.Email,
		Name:             res.User.Name,
		EmailVerified:    res.User.EmailVerified,
		SessionExpiresAt: res.Session.ExpiresAt,
	})
	if err != nil {
		return nil, oops.In("service").With("session_id", res.Session.ID).Wrapf(err, "issuing token")
	}
	return &TokenResult{Token: jwt, ExpiresAt: expiresAt}, nil
}

// Revoke ends the session behind sessionToken. Unknown or malformed tokens
// are a no-op.
func (s *AuthService) Revoke(ctx context.Context, sessionToken string) error {
	if !crypto.ValidOpaqueToken(sessionToken) {
		return nil
	}

	session, err := s.sessions.GetByTokenHash(ctx, crypto.HashOpaqueToken(sessionToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return s.sessions.Revoke(ctx, session.ID, s.now().UTC())
}

// JWKS returns the public keys that verify issued tokens.
func (s *AuthService) JWKS() crypto.JWKSet {
	return s.issuer.JWKS()
}

// CheckCallbackURL accepts an empty value, a same-site absolute path, or an
// absolute URL on the base URL's origin or a trusted origin.
func (s *AuthService) CheckCallbackURL(raw string) error {
	if raw == "" {
		return nil
	}
	// Browsers drop tab and newline characters and treat a backslash as a
	// slash, so "/\t/evil" or "/\\evil" would resolve to another host.
	if strings.ContainsFunc(raw, unsafeURLRune) {
		return ErrInvalidCallbackURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidCallbackURL
	}
	if strings.HasPrefix(raw, "/") {
		if strings.HasPrefix(raw, "//") || u.Scheme != "" || u.Host != "" {
			return ErrInvalidCallbackURL
		}
		return nil
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidCallbackURL
	}
	origin := u.Scheme + "://" + u.Host

	if origin == originOf(s.opts.BaseURL) {
		return nil
	}
	for _, trusted := range s.opts.TrustedOrigins {
		if origin == originOf(trusted) {
			return nil
		}
	}
	return ErrInvalidCallbackURL
}

func unsafeURLRune(r rune) bool {
	return r == '\\' || r < 0x20 || r == 0x7f
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
