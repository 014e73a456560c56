package handlers

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lattice/internal/config"
	"lattice/internal/core"
	"lattice/internal/types"
)

// AuthService is the registration and login surface the handler drives.
type AuthService interface {
	Register(ctx context.Context, email, password, ip, userAgent string) (*types.User, *types.Session, error)
	Login(ctx context.Context, email, password, ip, userAgent string) (*types.User, *types.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// UserDirectory looks up the authenticated user's record for GET /v1/auth/me.
type UserDirectory interface {
	GetByID(ctx context.Context, userID string) (*types.User, error)
}

// RegisterRequest is the request body for POST /v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the request body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned on successful register/login.
type AuthResponse struct {
	User      *types.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// AuthHandler handles registration, login, and logout. Its routes are
// public; logout finds the session via the cookie rather than the Actor so
// it works even with an expired context.
type AuthHandler struct {
	service      AuthService
	users        UserDirectory
	validator    *core.Validator
	cookieName   string
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service AuthService, users UserDirectory, cfg *config.Config, v *core.Validator, l *slog.Logger) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{
		service:      service,
		users:        users,
		validator:    v,
		cookieName:   cfg.Auth.CookieName,
		cookieSecure: cfg.Auth.CookieSecure,
		logger:       l,
	}
}

// RegisterRoutes mounts the auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
}

// RegisterProtectedRoutes mounts the auth endpoints that require a session.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.Me)
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, session, err := h.service.Register(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.setSessionCookie(w, session)
	core.JSON(w, r, http.StatusCreated, AuthResponse{User: user, ExpiresAt: session.ExpiresAt})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, session, err := h.service.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.setSessionCookie(w, session)
	core.JSON(w, r, http.StatusOK, AuthResponse{User: user, ExpiresAt: session.ExpiresAt})
}

// Logout handles POST /v1/auth/logout. Always succeeds: a missing or stale
// cookie still clears client state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookieName); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.WarnContext(r.Context(), "logout failed to delete session",
				"error", err,
			)
		}
	}

	h.clearSessionCookie(w)
	core.JSON(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

// Me handles GET /v1/auth/me. It reads the Actor injected by the auth
// middleware and returns the full user record.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	user, err := h.users.GetByID(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *types.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clientIP extracts the originating client address, preferring the first
// X-Forwarded-For hop. This assumes the ingress proxy overwrites the header;
// the value is informational, stored on the session row only.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
