package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glowdesk/glowdesk/internal/platform/httpx"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.handleSession)
	r.Post("/sign-in", h.handleSignIn)
	r.Post("/sign-out", h.handleSignOut)
	r.Post("/password-reset", h.handlePasswordReset)
	r.Post("/password-reset/confirm", h.handlePasswordResetConfirm)
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	Authenticated bool     `json:"authenticated"`
	User          *Profile `json:"user,omitempty"`
	CSRFToken     string   `json:"csrfToken"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.Fail(w, h.logger, "ensure csrf token failed", err)
		return
	}
	resp := sessionResponse{CSRFToken: token}
	if id := sess.User(); id != "" {
		user, err := h.service.User(r.Context(), id)
		switch {
		case err == nil && user.IsActive:
			profile := user.Profile()
			resp.Authenticated, resp.User = true, &profile
		case err == nil, errors.Is(err, repository.ErrNotFound):
			sess.SetUser("")
		default:
			httpx.Fail(w, h.logger, "load session user failed", err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req signInRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Warn("sign-in rejected", "ip", r.RemoteAddr)
		}
		httpx.Fail(w, h.logger, "sign-in failed", err)
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		httpx.Fail(w, h.logger, "renew session failed", err)
		return
	}
	sess.SetUser(user.ID)
	token := h.csrfManager.Rotate(sess)
	profile := user.Profile()
	httpx.JSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: &profile, CSRFToken: token})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var user *User
	if id := sess.User(); id != "" {
		u, err := h.service.User(r.Context(), id)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			h.logger.Warn("load user for sign-out", "error", err)
		}
		user = u
	}
	h.service.SignOut(r.Context(), user)
	h.sessionManager.Destroy(sess)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		httpx.Fail(w, h.logger, "request password reset failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		httpx.Fail(w, h.logger, "confirm password reset failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequireUser rejects requests whose session has no signed-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.UserIDFromContext(r.Context()) == "" {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
