// Package handler exposes the terminal screens' actions as JSON endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/auth"
	"github.com/comandaweb/terminal/internal/cart"
	"github.com/comandaweb/terminal/internal/checkout"
	"github.com/comandaweb/terminal/internal/service"
	"github.com/comandaweb/terminal/internal/workflow"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// textOrNumber accepts both a JSON number and a typed string, such as
// "R$ 40,50" for an amount or "12" for a table.
type textOrNumber string

func (t *textOrNumber) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = textOrNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = textOrNumber(n.String())
	return nil
}

// parseID reads a positive integer URL parameter.
func parseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeError maps domain and backend errors to a status and {"error": msg}.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		forbidden    *api.ForbiddenError
		backend      *api.Error
		insufficient *checkout.InsufficientError
	)

	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})

	case errors.Is(err, api.ErrNotAuthenticated), errors.Is(err, api.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})

	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": forbidden.Message})
	case errors.Is(err, workflow.ErrRoleNotAllowed), errors.Is(err, service.ErrCannotCreateOrder):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})

	case errors.Is(err, workflow.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})

	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    err.Error(),
			"faltando": insufficient.Deficit,
		})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})

	case errors.Is(err, api.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})

	case errors.As(err, &backend):
		msg := backend.Message
		if msg == "" {
			msg = backend.Error()
		}
		if backend.Status >= 400 && backend.Status < 500 {
			writeJSON(w, backend.Status, map[string]string{"error": msg})
			return
		}
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": msg})

	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend unavailable"})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, auth.ErrMissingCredentials) ||
		errors.Is(err, auth.ErrInvalidEmail) ||
		errors.Is(err, cart.ErrEmptyCart) ||
		errors.Is(err, cart.ErrNoTable) ||
		errors.Is(err, cart.ErrInvalidTable) ||
		errors.Is(err, cart.ErrInvalidQuantity) ||
		errors.Is(err, cart.ErrLineNotFound) ||
		errors.Is(err, checkout.ErrNoAmount) ||
		errors.Is(err, checkout.ErrInvalidValue) ||
		errors.Is(err, service.ErrConfirmationRequired) ||
		errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidMethod)
}

func isConflictError(err error) bool {
	return errors.Is(err, workflow.ErrStatusNotAllowed) ||
		errors.Is(err, workflow.ErrTerminalStatus) ||
		errors.Is(err, workflow.ErrInvalidTransition) ||
		errors.Is(err, workflow.ErrItemAlreadyReady) ||
		errors.Is(err, workflow.ErrNoOrder)
}
