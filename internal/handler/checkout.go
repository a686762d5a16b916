package handler

import (
	"context"
	"net/http"

	"github.com/comandaweb/terminal/internal/checkout"
	"github.com/comandaweb/terminal/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CheckoutServicer defines the service methods needed by the cashier screen.
type CheckoutServicer interface {
	PreviewChange(ctx context.Context, orderID int64, received decimal.Decimal) (checkout.Result, error)
	Pay(ctx context.Context, orderID int64, received decimal.Decimal, method string, acceptShortfall bool) (*service.PaymentResult, error)
}

// CheckoutHandler serves troco preview and payment.
type CheckoutHandler struct {
	svc CheckoutServicer
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc CheckoutServicer) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

// RegisterRoutes registers checkout endpoints. Expected to be mounted at /pedidos.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/troco", h.Preview)
	r.Post("/{id}/pagamento", h.Pay)
}

// --- Request / Response types ---

// Keys carries the on-screen keypad presses; when set it wins over Received.
type previewRequest struct {
	Received textOrNumber `json:"valor_recebido"`
	Keys     string       `json:"teclado"`
}

type paymentRequest struct {
	Received        textOrNumber `json:"valor_recebido"`
	Keys            string       `json:"teclado"`
	Method          string       `json:"metodo"`
	AcceptShortfall bool         `json:"aceitar_diferenca"`
}

func receivedAmount(typed textOrNumber, keys string) (decimal.Decimal, error) {
	if keys == "" {
		return checkout.ParseAmount(string(typed))
	}
	return checkout.KeypadAmount(keys)
}

// --- Handlers ---

// Preview handles POST /pedidos/{id}/troco.
func (h *CheckoutHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	received, err := receivedAmount(req.Received, req.Keys)
	if err != nil {
		writeError(w, "preview change", err)
		return
	}

	res, err := h.svc.PreviewChange(r.Context(), id, received)
	if err != nil {
		writeError(w, "preview change", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Pay handles POST /pedidos/{id}/pagamento.
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	received, err := receivedAmount(req.Received, req.Keys)
	if err != nil {
		writeError(w, "pay order", err)
		return
	}

	res, err := h.svc.Pay(r.Context(), id, received, req.Method, req.AcceptShortfall)
	if err != nil {
		writeError(w, "pay order", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
