// Package jwtverify lets services behind authgate accept the access tokens it
// issues. Keys come from the gateway's JWKS endpoint and are refreshed in the
// background, so verifying a request needs no call to the gateway's store.
package jwtverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing or malformed bearer token")
)

// Claims are the claims authgate puts in every access token. iss and aud both
// carry the gateway's base URL.
type Claims struct {
	jwt.RegisteredClaims
	SessionID     string `json:"sid"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"emailVerified"`
}

// ParseClaims verifies an EdDSA token with keyFunc and checks iss, aud and
// exp against issuer and now.
func ParseClaims(tokenString string, keyFunc jwt.Keyfunc, issuer string, now func() time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type Options struct {
	// RefreshInterval re-fetches the key set periodically. Zero refreshes
	// only when a token names an unknown kid.
	RefreshInterval time.Duration
	Logger          *slog.Logger
}

// Verifier checks tokens against a remote key set. It is safe for concurrent
// use.
type Verifier struct {
	jwks   *keyfunc.JWKS
	issuer string
	logger *slog.Logger
}

// New fetches the key set from jwksURL, e.g. https://auth.example.com/api/auth/jwks.
// issuer is the gateway's base URL.
func New(jwksURL, issuer string, opts Options) (*Verifier, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks background refresh failed", "url", jwksURL, "error", err)
		},
		RefreshInterval:   opts.RefreshInterval,
		RefreshRateLimit:  time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching jwks from %s: %w", jwksURL, err)
	}
	return &Verifier{jwks: jwks, issuer: issuer, logger: logger}, nil
}

// Verify returns the claims of a valid token.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	return ParseClaims(tokenString, v.jwks.Keyfunc, v.issuer, time.Now)
}

// Close stops the background refresh.
func (v *Verifier) Close() {
	v.jwks.EndBackground()
}

type contextKey struct{}

// Middleware rejects requests without a valid "Authorization: Bearer" token
// with 401 and stores the claims of accepted ones in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err == nil {
			var claims *Claims
			if claims, err = v.Verify(raw); err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
				return
			}
		}

		v.logger.DebugContext(r.Context(), "bearer token rejected", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "UNAUTHENTICATED",
			"message": "Invalid or missing access token",
		})
	})
}

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
