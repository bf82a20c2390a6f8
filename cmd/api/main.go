package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/crypto"
	"github.com/authgate/authgate/internal/handler"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/mail"
	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/repository"
	"github.com/authgate/authgate/internal/server"
	"github.com/authgate/authgate/internal/service"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Warn("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logging.Error(ctx, logger, "server error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	stores, db, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	var sender mail.Sender
	switch cfg.Mail.Delivery {
	case config.DeliverySMTP:
		sender = mail.NewSMTPSender(cfg.Mail)
	default:
		sender = mail.NewConsoleSender(logger)
	}

	var routerOpts []server.RouterOption
	if cfg.MetricsEnabled {
		m := metrics.New()
		sender = m.InstrumentSender(sender)
		routerOpts = append(routerOpts, server.WithMetrics(m))
	}
	dispatcher := mail.NewDispatcher(sender, logger, cfg.Mail.Timeout)

	issuer, err := crypto.NewTokenIssuer(cfg.AuthSecret, cfg.BaseURL, cfg.JWTTTL)
	if err != nil {
		return err
	}

	authService, err := service.NewAuthService(
		stores,
		dispatcher,
		crypto.NewPasswordHasher(crypto.DefaultHashParams()),
		issuer,
		service.Options{
			MinPasswordLength:           cfg.MinPasswordLength,
			MaxPasswordLength:           cfg.MaxPasswordLength,
			SessionTTL:                  cfg.SessionTTL,
			VerificationTTL:             cfg.VerificationTTL,
			RequireEmailVerification:    cfg.RequireEmailVerification,
			SendOnSignUp:                cfg.SendVerificationOnSignUp,
			SendOnSignIn:                cfg.SendVerificationOnSignIn,
			AutoSignInAfterVerification: cfg.AutoSignInAfterVerification,
			BaseURL:                     cfg.BaseURL,
			TrustedOrigins:              cfg.TrustedOrigins,
			VerificationPath:            server.AuthPrefix + "/verify-email",
			MailSubject:                 cfg.Mail.Subject,
		},
		logger,
	)
	if err != nil {
		return err
	}

	authHandler := handler.NewAuthHandler(authService, handler.CookieConfig{
		Name:   cfg.SessionCookieName,
		Secure: cfg.CookieSecure,
	})
	router := server.NewRouter(
		authHandler.Routes(middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)),
		logger,
		routerOpts...,
	)

	srv := server.New(cfg.Addr(), router, logger)
	srv.OnShutdown(dispatcher.Wait)

	logger.Info("server starting", "addr", cfg.Addr(), "env", cfg.Env, "mail_delivery", cfg.Mail.Delivery)
	return srv.Run(ctx)
}

// openStores connects to MySQL, or falls back to the in-memory store when no
// DSN is configured outside production.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (service.Stores, *sql.DB, error) {
	if cfg.DatabaseDSN == "" {
		if cfg.IsProduction() {
			return service.Stores{}, nil, errors.New("DATABASE_DSN is required in production")
		}
		logger.Warn("DATABASE_DSN not set, using in-memory store; data is lost on restart")
		store := repository.NewMemoryStore()
		return service.Stores{
			Users:         store.Users(),
			Sessions:      store.Sessions(),
			Verifications: store.Verifications(),
		}, nil, nil
	}

	db, err := repository.NewDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return service.Stores{}, nil, err
	}
	if cfg.MigrateOnStart {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return service.Stores{}, nil, err
		}
		logger.Info("database migrations applied")
	}

	return service.Stores{
		Users:         repository.NewUserRepository(db),
		Sessions:      repository.NewSessionRepository(db),
		Verifications: repository.NewVerificationRepository(db),
	}, db, nil
}
