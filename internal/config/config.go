package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultSecret = "dev-secret-change-in-production"

// Mail delivery modes.
const (
	DeliverySMTP    = "smtp"
	DeliveryConsole = "console"
)

type Config struct {
	Host     string
	Port     string
	Env      string
	LogLevel string

	BaseURL        string
	TrustedOrigins []string
	AuthSecret     string

	DatabaseDSN    string
	MigrateOnStart bool

	SessionTTL        time.Duration
	JWTTTL            time.Duration
	VerificationTTL   time.Duration
	SessionCookieName string
	CookieSecure      bool

	MinPasswordLength           int
	MaxPasswordLength           int
	RequireEmailVerification    bool
	SendVerificationOnSignUp    bool
	SendVerificationOnSignIn    bool
	AutoSignInAfterVerification bool

	RateLimitRPS   float64
	RateLimitBurst int

	MetricsEnabled bool

	Mail MailConfig
}

// MailConfig holds the SMTP transport settings and the delivery mode.
// With Delivery set to "console" verification links are logged instead of sent.
type MailConfig struct {
	Delivery string
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Subject  string
	Timeout  time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	env := &envReader{}

	cfg := Config{
		Host:     env.str("HOST", "0.0.0.0"),
		Port:     env.str("PORT", "3000"),
		Env:      env.str("ENV", "development"),
		LogLevel: env.str("LOG_LEVEL", "info"),

		BaseURL:        strings.TrimRight(env.str("BASE_URL", "http://localhost:3000"), "/"),
		TrustedOrigins: env.list("TRUSTED_ORIGINS"),
		AuthSecret:     env.str("AUTH_SECRET", defaultSecret),

		DatabaseDSN:    env.str("DATABASE_DSN", ""),
		MigrateOnStart: env.boolean("DB_MIGRATE", true),

		SessionTTL:        env.duration("SESSION_TTL", 7*24*time.Hour),
		JWTTTL:            env.duration("JWT_TTL", 15*time.Minute),
		VerificationTTL:   env.duration("VERIFICATION_TTL", time.Hour),
		SessionCookieName: env.str("SESSION_COOKIE_NAME", "auth.session_token"),

		MinPasswordLength:           env.integer("MIN_PASSWORD_LENGTH", 8),
		MaxPasswordLength:           env.integer("MAX_PASSWORD_LENGTH", 128),
		RequireEmailVerification:    env.boolean("REQUIRE_EMAIL_VERIFICATION", true),
		SendVerificationOnSignUp:    env.boolean("SEND_VERIFICATION_ON_SIGN_UP", true),
		SendVerificationOnSignIn:    env.boolean("SEND_VERIFICATION_ON_SIGN_IN", false),
		AutoSignInAfterVerification: env.boolean("AUTO_SIGN_IN_AFTER_VERIFICATION", false),

		RateLimitRPS:   env.float("RATE_LIMIT_RPS", 5),
		RateLimitBurst: env.integer("RATE_LIMIT_BURST", 10),

		MetricsEnabled: env.boolean("METRICS_ENABLED", true),
	}
	cfg.CookieSecure = env.boolean("COOKIE_SECURE", strings.HasPrefix(cfg.BaseURL, "https://"))

	defaultDelivery := DeliveryConsole
	if cfg.IsProduction() {
		defaultDelivery = DeliverySMTP
	}
	cfg.Mail = MailConfig{
		Delivery: strings.ToLower(env.str("MAIL_DELIVERY", defaultDelivery)),
		Host:     env.str("MAIL_HOST", ""),
		Port:     env.integer("MAIL_PORT", 587),
		User:     env.str("MAIL_AUTH_USER", ""),
		Password: env.str("MAIL_AUTH_PASSWORD", ""),
		From:     env.str("MAIL_FROM", ""),
		Subject:  env.str("MAIL_SUBJECT", "Verify your email address"),
		Timeout:  env.duration("MAIL_TIMEOUT", 30*time.Second),
	}

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("config: PORT must be set"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: BASE_URL %q must be an absolute URL", c.BaseURL))
	}
	for _, origin := range c.TrustedOrigins {
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: trusted origin %q must be an absolute URL", origin))
		}
	}

	if c.IsProduction() {
		if c.AuthSecret == defaultSecret || len(c.AuthSecret) < 32 {
			errs = append(errs, errors.New("config: AUTH_SECRET must be set to at least 32 bytes in production"))
		}
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("config: DATABASE_DSN must be set in production"))
		}
	}
	if c.AuthSecret == "" {
		errs = append(errs, errors.New("config: AUTH_SECRET must not be empty"))
	}

	if c.SessionTTL <= 0 || c.JWTTTL <= 0 || c.VerificationTTL <= 0 {
		errs = append(errs, errors.New("config: SESSION_TTL, JWT_TTL and VERIFICATION_TTL must be positive"))
	}
	if c.JWTTTL > c.SessionTTL {
		errs = append(errs, errors.New("config: JWT_TTL must not exceed SESSION_TTL"))
	}
	if c.SessionCookieName == "" {
		errs = append(errs, errors.New("config: SESSION_COOKIE_NAME must not be empty"))
	}

	if c.MinPasswordLength < 1 || c.MaxPasswordLength < c.MinPasswordLength {
		errs = append(errs, fmt.Errorf("config: invalid password length bounds %d..%d", c.MinPasswordLength, c.MaxPasswordLength))
	}

	switch c.Mail.Delivery {
	case DeliveryConsole:
	case DeliverySMTP:
		if c.Mail.Host == "" || c.Mail.Port <= 0 || c.Mail.From == "" {
			errs = append(errs, errors.New("config: MAIL_HOST, MAIL_PORT and MAIL_FROM are required for smtp delivery"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: MAIL_DELIVERY must be %q or %q, got %q", DeliverySMTP, DeliveryConsole, c.Mail.Delivery))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// envReader collects parse errors so that Load can report every bad key at once.
type envReader struct {
	errs []error
}

func (e *envReader) str(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) list(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimRight(strings.TrimSpace(p), "/"); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *envReader) integer(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return n
}

func (e *envReader) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return f
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return b
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return d
}
