package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/comandaweb/terminal/internal/auth"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/go-chi/chi/v5"
)

// SessionManager defines the session methods needed by auth handlers.
// Satisfied by *auth.Manager; narrow interface for testability.
type SessionManager interface {
	Login(ctx context.Context, email, senha string) (*model.Session, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (*model.Session, error)
	Remaining(ctx context.Context) time.Duration
	Renew(ctx context.Context) error
	UpdateUser(ctx context.Context, patch model.User) (*model.User, error)
}

// AuthHandler handles the login screen and session status.
type AuthHandler struct {
	sessions SessionManager
	warning  time.Duration
}

// NewAuthHandler creates a new AuthHandler. warning is how long before expiry
// the session reports itself as expiring.
func NewAuthHandler(sessions SessionManager, warning time.Duration) *AuthHandler {
	return &AuthHandler{sessions: sessions, warning: warning}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/session", h.Session)
	r.Post("/auth/renovar", h.Renew)
	r.Put("/auth/usuario", h.UpdateProfile)
}

// --- Request / Response types ---

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type profileRequest struct {
	Name  string `json:"nome"`
	Email string `json:"email"`
}

type sessionResponse struct {
	User       *model.User `json:"user"`
	Role       string      `json:"role"`
	LoginTime  time.Time   `json:"login_time"`
	ExpiresIn  int64       `json:"expira_em_segundos"`
	Expiring   bool        `json:"expirando"`
	RedirectTo string      `json:"redirect"`
}

func (h *AuthHandler) toSessionResponse(ctx context.Context, sess *model.Session) sessionResponse {
	left := h.sessions.Remaining(ctx)
	return sessionResponse{
		User:       sess.User,
		Role:       sess.User.RoleKey(),
		LoginTime:  sess.LoginTime,
		ExpiresIn:  int64(left / time.Second),
		Expiring:   left > 0 && left < h.warning,
		RedirectTo: auth.RedirectPath(sess.User.RoleKey()),
	}
}

// --- Handlers ---

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sess, err := h.sessions.Login(r.Context(), req.Email, req.Senha)
	if err != nil {
		writeError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toSessionResponse(r.Context(), sess))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		writeError(w, "logout", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": auth.RedirectPath("")})
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Session(r.Context())
	if err != nil {
		writeError(w, "session", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toSessionResponse(r.Context(), sess))
}

// Renew handles POST /auth/renovar.
func (h *AuthHandler) Renew(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Renew(r.Context()); err != nil {
		writeError(w, "renew session", err)
		return
	}
	h.Session(w, r)
}

// UpdateProfile handles PUT /auth/usuario: the display name and email shown on
// the screens.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" && req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nome or email is required"})
		return
	}
	if _, err := h.sessions.UpdateUser(r.Context(), model.User{Name: req.Name, Email: req.Email}); err != nil {
		writeError(w, "update user", err)
		return
	}
	h.Session(w, r)
}
