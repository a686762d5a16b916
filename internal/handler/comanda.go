package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/comandaweb/terminal/internal/cart"
	"github.com/comandaweb/terminal/internal/checkout"
	"github.com/comandaweb/terminal/internal/enum"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

var errUnknownMenuItem = errors.New("item not on the menu")

// MenuSource yields the catalogue. Satisfied by *api.Client.
type MenuSource interface {
	Menu(ctx context.Context) ([]model.MenuItem, error)
}

// CartSubmitter sends the comanda. Satisfied by *service.OrderService.
type CartSubmitter interface {
	SubmitCart(ctx context.Context, c *cart.Cart) (*model.Order, error)
}

// ComandaHandler serves the menu screen: the catalogue and the comanda being built.
type ComandaHandler struct {
	menu   MenuSource
	cart   *cart.Cart
	orders CartSubmitter
}

// NewComandaHandler creates a new ComandaHandler.
func NewComandaHandler(menu MenuSource, c *cart.Cart, orders CartSubmitter) *ComandaHandler {
	return &ComandaHandler{menu: menu, cart: c, orders: orders}
}

// RegisterRoutes registers menu and comanda endpoints on the given Chi router.
func (h *ComandaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cardapio", h.Menu)
	r.Route("/comanda", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/itens", h.AddItem)
		r.Delete("/itens/{catalogID}", h.DecrementItem)
		r.Put("/itens/{index}/nota", h.SetNote)
		r.Put("/mesa", h.SetTable)
		r.Post("/enviar", h.Submit)
		r.Delete("/", h.Clear)
	})
}

// --- Request / Response types ---

type menuResponse struct {
	Items      []model.MenuItem `json:"itens"`
	Categories []string         `json:"categorias"`
}

type comandaResponse struct {
	Table        int               `json:"mesa"`
	EditingOrder int64             `json:"pedido_editando,omitempty"`
	Items        []model.CartEntry `json:"itens"`
	Count        int               `json:"quantidade_total"`
	Total        decimal.Decimal   `json:"total"`
	TotalDisplay string            `json:"total_formatado"`
}

type addItemRequest struct {
	CatalogItemID int64  `json:"id_item"`
	Quantity      int    `json:"quantidade"`
	Note          string `json:"observacao"`
}

type noteRequest struct {
	Note string `json:"observacao"`
}

type tableRequest struct {
	Table textOrNumber `json:"mesa"`
}

func (h *ComandaHandler) snapshot() comandaResponse {
	total := h.cart.Total()
	items := h.cart.Entries()
	if items == nil {
		items = []model.CartEntry{}
	}
	return comandaResponse{
		Table:        h.cart.Table(),
		EditingOrder: h.cart.EditingOrder(),
		Items:        items,
		Count:        h.cart.Count(),
		Total:        total,
		TotalDisplay: checkout.FormatBRL(total),
	}
}

// --- Handlers ---

// Menu handles GET /cardapio?tipo=&categoria=&q=.
func (h *ComandaHandler) Menu(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.Menu(r.Context())
	if err != nil {
		writeError(w, "load menu", err)
		return
	}
	q := r.URL.Query()
	typ := q.Get("tipo")
	writeJSON(w, http.StatusOK, menuResponse{
		Items:      cart.Filter(items, typ, q.Get("categoria"), q.Get("q")),
		Categories: append([]string{enum.MenuCategoryAll}, cart.Categories(items, typ)...),
	})
}

// Get handles GET /comanda.
func (h *ComandaHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

// AddItem handles POST /comanda/itens.
func (h *ComandaHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	items, err := h.menu.Menu(r.Context())
	if err != nil {
		writeError(w, "load menu", err)
		return
	}
	item, ok := cart.Find(items, req.CatalogItemID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": errUnknownMenuItem.Error()})
		return
	}

	if err := h.cart.Add(r.Context(), item, req.Quantity, req.Note); err != nil {
		writeError(w, "add to comanda", err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

// DecrementItem handles DELETE /comanda/itens/{catalogID}.
func (h *ComandaHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "catalogID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}
	if err := h.cart.Decrement(r.Context(), id); err != nil {
		writeError(w, "decrement comanda line", err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

// SetNote handles PUT /comanda/itens/{index}/nota.
func (h *ComandaHandler) SetNote(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line index"})
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.cart.SetNote(r.Context(), index, req.Note); err != nil {
		writeError(w, "set note", err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

// SetTable handles PUT /comanda/mesa.
func (h *ComandaHandler) SetTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	table, err := cart.ParseTable(string(req.Table))
	if err != nil {
		writeError(w, "set table", err)
		return
	}
	if err := h.cart.SetTable(r.Context(), table); err != nil {
		writeError(w, "set table", err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

// Submit handles POST /comanda/enviar.
func (h *ComandaHandler) Submit(w http.ResponseWriter, r *http.Request) {
	editing := h.cart.EditingOrder()
	o, err := h.orders.SubmitCart(r.Context(), h.cart)
	if err != nil {
		writeError(w, "submit comanda", err)
		return
	}
	status := http.StatusCreated
	if editing != 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, o)
}

// Clear handles DELETE /comanda.
func (h *ComandaHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(r.Context()); err != nil {
		writeError(w, "clear comanda", err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}
