package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/authgate/authgate/internal/crypto"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/service"
)

// Engine is the authentication capability the HTTP surface is built on.
type Engine interface {
	SignUp(ctx context.Context, in service.SignUpInput) (*service.SignUpResult, error)
	SignIn(ctx context.Context, in service.SignInInput) (*service.SignInResult, error)
	VerifyEmail(ctx context.Context, token string, client service.ClientMeta) (*service.VerifyResult, error)
	SendVerificationEmail(ctx context.Context, email, callbackURL string) error
	GetSession(ctx context.Context, token string) (*service.SessionResult, error)
	IssueToken(ctx context.Context, sessionToken string) (*service.TokenResult, error)
	Revoke(ctx context.Context, sessionToken string) error
	CheckCallbackURL(raw string) error
	JWKS() crypto.JWKSet
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	engine Engine
	cookie CookieConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(engine Engine, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{engine: engine, cookie: cookie}
}

// Routes returns the authentication router, meant to be mounted under
// /api/auth. The limiters wrap the credential endpoints only.
func (h *AuthHandler) Routes(limiters ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.SessionToken(h.cookie.Name))

	r.Group(func(r chi.Router) {
		r.Use(limiters...)
		r.Post("/sign-up/email", h.HandleSignUp)
		r.Post("/sign-in/email", h.HandleSignIn)
		r.Post("/send-verification-email", h.HandleSendVerificationEmail)
	})

	r.Get("/verify-email", h.HandleVerifyEmail)
	r.Get("/get-session", h.HandleGetSession)
	r.Get("/token", h.HandleToken)
	r.Post("/sign-out", h.HandleSignOut)
	r.Get("/jwks", h.HandleJWKS)
	r.Get("/ok", h.HandleOK)

	return r
}

// HandleSignUp handles POST /api/auth/sign-up/email requests.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req model.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.engine.SignUp(r.Context(), service.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		CallbackURL: req.CallbackURL,
		Client:      clientMeta(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := model.SignUpResponse{User: model.NewUserResponse(res.User)}
	if res.Session != nil {
		h.setSessionCookie(w, res.Token, res.Session.ExpiresAt)
		resp.Token = &res.Token
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSignIn handles POST /api/auth/sign-in/email requests.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req model.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.engine.SignIn(r.Context(), service.SignInInput{
		Email:       req.Email,
		Password:    req.Password,
		CallbackURL: req.CallbackURL,
		Client:      clientMeta(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, res.Token, res.Session.ExpiresAt)
	writeJSON(w, http.StatusOK, model.SignInResponse{
		Redirect: req.CallbackURL != "",
		URL:      req.CallbackURL,
		Token:    res.Token,
		Session:  model.NewSessionResponse(res.Session),
		User:     model.NewUserResponse(res.User),
	})
}

// HandleVerifyEmail handles GET /api/auth/verify-email requests. With a
// callbackURL the client is redirected there, carrying ?error=CODE when
// verification failed.
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	callback := r.URL.Query().Get("callbackURL")

	if err := h.engine.CheckCallbackURL(callback); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.engine.VerifyEmail(r.Context(), token, clientMeta(r))
	if err != nil {
		var svcErr *service.Error
		if callback != "" && errors.As(err, &svcErr) {
			http.Redirect(w, r, withErrorParam(callback, svcErr.Code), http.StatusFound)
			return
		}
		writeError(w, r, err)
		return
	}

	if res.Session != nil {
		h.setSessionCookie(w, res.Token, res.Session.ExpiresAt)
	}
	if callback != "" {
		http.Redirect(w, r, callback, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, model.VerifyEmailResponse{Status: true, User: model.NewUserResponse(res.User)})
}

// HandleSendVerificationEmail handles POST /api/auth/send-verification-email requests.
func (h *AuthHandler) HandleSendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req model.SendVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.SendVerificationEmail(r.Context(), req.Email, req.CallbackURL); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"status": true})
}

// HandleGetSession handles GET /api/auth/get-session requests. A missing or
// invalid session is answered with null.
func (h *AuthHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.SessionTokenFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	res, err := h.engine.GetSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SessionEnvelope{
		Session: model.NewSessionResponse(res.Session),
		User:    model.NewUserResponse(res.User),
	})
}

// HandleToken handles GET /api/auth/token requests.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.SessionTokenFromContext(r.Context())
	if !ok {
		writeError(w, r, service.ErrUnauthenticated)
		return
	}

	res, err := h.engine.IssueToken(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.TokenResponse{Token: res.Token})
}

// HandleSignOut handles POST /api/auth/sign-out requests.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.SessionTokenFromContext(r.Context()); ok {
		if err := h.engine.Revoke(r.Context(), token); err != nil {
			writeError(w, r, err)
			return
		}
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleJWKS handles GET /api/auth/jwks requests.
func (h *AuthHandler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, h.engine.JWKS())
}

func (h *AuthHandler) HandleOK(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   max(1, int(time.Until(expiresAt).Seconds())),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clientMeta(r *http.Request) service.ClientMeta {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return service.ClientMeta{IPAddress: ip, UserAgent: r.UserAgent()}
}

func withErrorParam(callback, code string) string {
	u, err := url.Parse(callback)
	if err != nil {
		return callback
	}
	q := u.Query()
	q.Set("error", code)
	u.RawQuery = q.Encode()
	return u.String()
}
