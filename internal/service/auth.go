package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/crypto"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/mail"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/repository"
)

const (
	maxEmailLength = 255
	maxNameLength  = 255
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

type VerificationRepository interface {
	Create(ctx context.Context, v *model.VerificationToken) error
	VerifyEmail(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
}

// Mailer delivers mail without reporting the outcome to the caller.
type Mailer interface {
	Dispatch(ctx context.Context, msg mail.Message)
}

// Stores groups the persistence dependencies of AuthService.
type Stores struct {
	Users         UserRepository
	Sessions      SessionRepository
	Verifications VerificationRepository
}

// Options holds the authentication policy.
type Options struct {
	MinPasswordLength           int
	MaxPasswordLength           int
	SessionTTL                  time.Duration
	VerificationTTL             time.Duration
	RequireEmailVerification    bool
	SendOnSignUp                bool
	SendOnSignIn                bool
	AutoSignInAfterVerification bool
	BaseURL                     string
	TrustedOrigins              []string
	VerificationPath            string
	MailSubject                 string
}

func DefaultOptions() Options {
	return Options{
		MinPasswordLength:        8,
		MaxPasswordLength:        128,
		SessionTTL:               7 * 24 * time.Hour,
		VerificationTTL:          time.Hour,
		RequireEmailVerification: true,
		SendOnSignUp:             true,
		BaseURL:                  "http://localhost:3000",
		VerificationPath:         "/api/auth/verify-email",
		MailSubject:              "Verify your email address",
	}
}

// ClientMeta describes the client a session is issued to.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type SignUpInput struct {
	Email       string
	Password    string
	Name        string
	CallbackURL string
	Client      ClientMeta
}

type SignInInput struct {
	Email       string
	Password    string
	CallbackURL string
	Client      ClientMeta
}

// SignUpResult carries the new user. Session and Token are set only when
// email verification is not required and the user is signed in at once; if
// opening that session fails the user is still returned without one.
type SignUpResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

type SignInResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// AuthService implements sign-up, sign-in, email verification and session
// token issuance.
type AuthService struct {
	users         UserRepository
	sessions      SessionRepository
	verifications VerificationRepository
	mailer        Mailer
	hasher        *crypto.PasswordHasher
	issuer        *crypto.TokenIssuer
	opts          Options
	logger        *slog.Logger

	// dummyHash is verified against when the email is unknown so that both
	// sign-in failures cost one hash computation.
	dummyHash string
	now       func() time.Time
}

func NewAuthService(stores Stores, mailer Mailer, hasher *crypto.PasswordHasher, issuer *crypto.TokenIssuer, opts Options, logger *slog.Logger) (*AuthService, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}
	if opts.VerificationPath == "" {
		opts.VerificationPath = DefaultOptions().VerificationPath
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &AuthService{
		users:         stores.Users,
		sessions:      stores.Sessions,
		verifications: stores.Verifications,
		mailer:        mailer,
		hasher:        hasher,
		issuer:        issuer,
		opts:          opts,
		logger:        logger,
		dummyHash:     dummy,
		now:           time.Now,
	}, nil
}

// SignUp creates an unverified account. Input is validated before any store
// write; the verification email is sent in the background.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validation.Validate(name, validation.Required, validation.Length(1, maxNameLength)); err != nil {
		return nil, ErrNameRequired
	}
	if err := s.CheckCallbackURL(in.CallbackURL); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.In("service").Wrapf(err, "hashing password")
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if s.opts.SendOnSignUp {
		s.sendVerification(ctx, user, in.CallbackURL)
	}

	result := &SignUpResult{User: user}
	if !s.opts.RequireEmailVerification {
		session, token, err := s.createSession(ctx, user, in.Client)
		if err != nil {
			// The account exists; the client can still sign in.
			logging.Error(ctx, s.logger, "opening session after sign-up failed", err, "user_id", user.ID)
			return result, nil
		}
		result.Session, result.Token = session, token
	}
	return result, nil
}

// SignIn checks credentials and opens a session. Unknown email and wrong
// password fail identically; an unverified account fails only after the
// password has been checked.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.CheckCallbackURL(in.CallbackURL); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = s.hasher.Verify(in.Password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	match, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, oops.In("service").With("user_id", user.ID).Wrapf(err, "verifying password")
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	if s.opts.RequireEmailVerification && !user.EmailVerified {
		if s.opts.SendOnSignIn {
			s.sendVerification(ctx, user, in.CallbackURL)
		}
		return nil, ErrEmailNotVerified
	}

	session, token, err := s.createSession(ctx, user, in.Client)
	if err != nil {
		return nil, err
	}
	return &SignInResult{User: user, Session: session, Token: token}, nil
}

func (s *AuthService) createSession(ctx context.Context, user *model.User, client ClientMeta) (*model.Session, string, error) {
	token, hash, err := crypto.NewOpaqueToken()
	if err != nil {
		return nil, "", oops.In("service").Wrapf(err, "generating session token")
	}

	now := s.now().UTC()
	session := &model.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		IPAddress: truncateRunes(client.IPAddress, model.MaxIPAddressLength),
		UserAgent: truncateRunes(client.UserAgent, model.MaxUserAgentLength),
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}
	return session, token, nil
}

func (s *AuthService) validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < s.opts.MinPasswordLength {
		return ErrPasswordTooShort
	}
	if n > s.opts.MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required,
		validation.Length(3, maxEmailLength),
		is.Email,
	)
	if err != nil {
		return ErrInvalidEmail
	}
	return nil
}
