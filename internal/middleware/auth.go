package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/comandaweb/terminal/internal/enum"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/comandaweb/terminal/internal/workflow"
)

type contextKey string

const sessionKey contextKey = "session"

// Landing pages for a failed guard.
const (
	LoginPage        = "/login.html"
	UnauthorizedPage = "/nao-autorizado.html"
)

// Page roles. Each screen is open to the roles that may perform its main
// action in the permission table.
var (
	PageMenu     = workflow.AllowedRoles(workflow.ActionAddItem)
	PageOrders   = workflow.AllowedRoles(workflow.ActionView)
	PageKitchen  = workflow.AllowedRoles(workflow.ActionMarkItemReady)
	PageCheckout = workflow.AllowedRoles(workflow.ActionPay)
)

// Sessions yields the live local session. Satisfied by *auth.Manager.
type Sessions interface {
	Session(ctx context.Context) (*model.Session, error)
}

// RequireSession rejects requests while the terminal is logged out or the
// session has expired.
func RequireSession(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Session(r.Context())
			if err != nil || sess == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":    "not authenticated",
					"redirect": LoginPage,
				})
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through sessions whose user holds one of roles. Roles are
// compared after normalisation, so "Garçom" matches "garcom".
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":    "not authenticated",
					"redirect": LoginPage,
				})
				return
			}

			role := sess.User.RoleKey()
			for _, allowed := range roles {
				if role != "" && role == enum.NormalizeRole(allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, http.StatusForbidden, map[string]string{
				"error":    "insufficient permissions",
				"redirect": UnauthorizedPage,
			})
		})
	}
}

func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionKey).(*model.Session)
	return sess
}

// RoleFromContext is the normalised role of the session in ctx, or "".
func RoleFromContext(ctx context.Context) string {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return ""
	}
	return sess.User.RoleKey()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
