package model

import "time"

// User represents a user in the database.
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Widths of the sessions client columns, in characters.
const (
	MaxIPAddressLength = 64
	MaxUserAgentLength = 512
)

// Session is a server-side record of a successful sign-in. Only the SHA-256
// of the session token is stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Valid reports whether the session is unrevoked and unexpired at now.
func (s *Session) Valid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// VerificationToken is a single-use proof of control of an email address.
type VerificationToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Expired reports whether the token can no longer be consumed at now.
func (v *VerificationToken) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// SignUpRequest represents an email sign-up request.
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	CallbackURL string `json:"callbackURL,omitempty"`
}

// SignInRequest represents an email sign-in request.
type SignInRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CallbackURL string `json:"callbackURL,omitempty"`
}

// SendVerificationRequest asks for a new verification email.
type SendVerificationRequest struct {
	Email       string `json:"email"`
	CallbackURL string `json:"callbackURL,omitempty"`
}

// UserResponse represents user data safe for API responses (no sensitive fields).
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SessionResponse represents session data safe for API responses.
type SessionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SignUpResponse struct {
	Token *string      `json:"token"`
	User  UserResponse `json:"user"`
}

type SignInResponse struct {
	Redirect bool            `json:"redirect"`
	URL      string          `json:"url,omitempty"`
	Token    string          `json:"token"`
	Session  SessionResponse `json:"session"`
	User     UserResponse    `json:"user"`
}

type VerifyEmailResponse struct {
	Status bool         `json:"status"`
	User   UserResponse `json:"user"`
}

type SessionEnvelope struct {
	Session SessionResponse `json:"session"`
	User    UserResponse    `json:"user"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorResponse is the body of every error reply. Code is stable and meant
// for programmatic branching; Message is for humans.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func NewSessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}
