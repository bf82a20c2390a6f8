package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/authgate/authgate/jwtverify"
)

var ErrInvalidToken = jwtverify.ErrInvalidToken

const signingKeyInfo = "authgate jwt signing key v1"

// Claims are the JWT claims derived from a session; downstream services read
// them through package jwtverify.
type Claims = jwtverify.Claims

// TokenSubject is the session data a JWT is minted from.
type TokenSubject struct {
	UserID           string
	SessionID        string
	Email            string
	Name             string
	EmailVerified    bool
	SessionExpiresAt time.Time
}

// JWK is a public Ed25519 key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
}

// JWKSet is the document served on the jwks endpoint.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// TokenIssuer signs short-lived EdDSA JWTs. The key pair is derived from the
// auth secret with HKDF, so every instance sharing a secret publishes the
// same key and restarts do not invalidate outstanding tokens.
type TokenIssuer struct {
	private  ed25519.PrivateKey
	public   ed25519.PublicKey
	kid      string
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenIssuer derives the signing key from secret. issuer is used for both
// the iss and aud claims.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token issuer: empty secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token issuer: ttl must be positive, got %s", ttl)
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(signingKeyInfo)), seed); err != nil {
		return nil, fmt.Errorf("deriving signing key: %w", err)
	}
	private := ed25519.NewKeyFromSeed(seed)
	public := private.Public().(ed25519.PublicKey)

	sum := sha256.Sum256(public)

	return &TokenIssuer{
		private:  private,
		public:   public,
		kid:      hex.EncodeToString(sum[:8]),
		issuer:   issuer,
		audience: issuer,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue signs a JWT for sub. The expiry is the earlier of now+ttl and the
// backing session's expiry.
func (i *TokenIssuer) Issue(sub TokenSubject) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	if !sub.SessionExpiresAt.IsZero() && sub.SessionExpiresAt.Before(expiresAt) {
		expiresAt = sub.SessionExpiresAt
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   sub.UserID,
			Audience:  jwt.ClaimStrings{i.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SessionID:     sub.SessionID,
		Email:         sub.Email,
		Name:          sub.Name,
		EmailVerified: sub.EmailVerified,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = i.kid

	signed, err := token.SignedString(i.private)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Validate parses and validates a token signed by this issuer.
func (i *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	return jwtverify.ParseClaims(tokenString, func(*jwt.Token) (any, error) {
		return i.public, nil
	}, i.issuer, i.now)
}

// JWKS returns the public half of the signing key.
func (i *TokenIssuer) JWKS() JWKSet {
	return JWKSet{Keys: []JWK{{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(i.public),
		Kid: i.kid,
		Alg: jwt.SigningMethodEdDSA.Alg(),
		Use: "sig",
	}}}
}
