package handler

import (
	"context"
	"net/http"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/enum"
	"github.com/comandaweb/terminal/internal/middleware"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/comandaweb/terminal/internal/service"
	"github.com/go-chi/chi/v5"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	List(ctx context.Context) ([]model.Order, error)
	Open(ctx context.Context, id int64) (*service.View, error)
	MarkItemReady(ctx context.Context, orderID, itemID int64, confirmed bool) (*service.View, error)
	AddItems(ctx context.Context, orderID int64, items []api.NewItem) (*service.View, error)
	RemoveItem(ctx context.Context, orderID, itemID int64) (*service.View, error)
	Cancel(ctx context.Context, orderID int64) (*service.View, error)
}

// EditingMarker records which order the comanda is adding to.
// Satisfied by *cart.Cart.
type EditingMarker interface {
	SetEditingOrder(ctx context.Context, orderID int64) error
}

// OrderHandler serves the order list and the order summary screen.
type OrderHandler struct {
	svc     OrderServicer
	editing EditingMarker
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, editing EditingMarker) *OrderHandler {
	return &OrderHandler{svc: svc, editing: editing}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /pedidos.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/itens", h.AddItems)
	r.Delete("/{id}/itens/{itemID}", h.RemoveItem)
	r.Post("/{id}/cancelar", h.Cancel)
	r.Post("/{id}/editar", h.Edit)
}

// RegisterKitchenRoutes registers the actions of the kitchen screen.
func (h *OrderHandler) RegisterKitchenRoutes(r chi.Router) {
	r.Post("/{id}/itens/{itemID}/pronto", h.MarkItemReady)
}

// --- Request / Response types ---

type addItemsRequest struct {
	Items []api.NewItem `json:"novos_itens"`
}

type markReadyRequest struct {
	Confirmed bool `json:"confirmado"`
}

type orderSummary struct {
	ID          int64  `json:"id"`
	TableNumber int    `json:"numero_mesa"`
	Status      string `json:"status"`
	ItemCount   int    `json:"quantidade_itens"`
	Total       string `json:"valor_total"`
}

// visibleTo narrows the list to the orders role works on.
func visibleTo(role string, o model.Order) bool {
	switch role {
	case enum.RoleKitchen:
		return o.Status == enum.OrderStatusOpen || o.Status == enum.OrderStatusPreparing
	case enum.RoleCashier:
		return o.Status == enum.OrderStatusDelivered
	}
	return true
}

// --- Handlers ---

// List handles GET /pedidos. ?status= narrows by canonical or legacy status;
// ?todos=1 skips the per-role filter.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list orders", err)
		return
	}

	role := middleware.RoleFromContext(r.Context())
	status := enum.NormalizeOrderStatus(r.URL.Query().Get("status"))
	all := r.URL.Query().Get("todos") == "1"

	out := make([]orderSummary, 0, len(orders))
	for _, o := range orders {
		if status != "" && o.Status != status {
			continue
		}
		if !all && !visibleTo(role, o) {
			continue
		}
		out = append(out, orderSummary{
			ID:          o.ID,
			TableNumber: o.TableNumber,
			Status:      o.Status,
			ItemCount:   o.ItemCount(),
			Total:       o.Total().StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /pedidos/{id}: the order plus what the current role may do.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	v, err := h.svc.Open(r.Context(), id)
	if err != nil {
		writeError(w, "open order", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// MarkItemReady handles POST /pedidos/{id}/itens/{itemID}/pronto.
func (h *OrderHandler) MarkItemReady(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	itemID, ok := parseID(r, "itemID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}
	var req markReadyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	v, err := h.svc.MarkItemReady(r.Context(), id, itemID, req.Confirmed)
	if err != nil {
		writeError(w, "mark item ready", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// AddItems handles POST /pedidos/{id}/itens.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	var req addItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	v, err := h.svc.AddItems(r.Context(), id, req.Items)
	if err != nil {
		writeError(w, "add items", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// RemoveItem handles DELETE /pedidos/{id}/itens/{itemID}.
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	itemID, ok := parseID(r, "itemID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	v, err := h.svc.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		writeError(w, "remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Cancel handles POST /pedidos/{id}/cancelar.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	v, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Edit handles POST /pedidos/{id}/editar: the next comanda sent appends to
// this order. The order is opened first so the add-item permission is checked
// against a fresh copy.
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	v, err := h.svc.Open(r.Context(), id)
	if err != nil {
		writeError(w, "open order", err)
		return
	}
	if !v.Affordances.AddItem {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "items cannot be added to this order now"})
		return
	}
	if err := h.editing.SetEditingOrder(r.Context(), id); err != nil {
		writeError(w, "mark order for editing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pedido_editando": id, "redirect": "/index.html"})
}
