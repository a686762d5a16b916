package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/comandaweb/terminal/internal/model"
	"github.com/shopspring/decimal"
)

// --- Request / Response types ---

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// NewItem is one line appended to, or created with, an order.
type NewItem struct {
	CatalogItemID int64  `json:"id_item"`
	Quantity      int    `json:"quantidade"`
	Note          string `json:"observacao"`
}

type addItemsRequest struct {
	Items []NewItem `json:"novos_itens"`
}

type createOrderRequest struct {
	TableNumber int       `json:"id_mesa"`
	Items       []NewItem `json:"itens"`
}

type PaymentRequest struct {
	OrderID    int64           `json:"id_pedido"`
	AmountPaid decimal.Decimal `json:"valor_pago"`
	Method     string          `json:"metodo"`
}

// --- Endpoints ---

// Login is the only call made without a token. It always targets the bare /auth route.
func (c *Client) Login(ctx context.Context, email, senha string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.send(ctx, http.MethodPost, c.baseURL+"/auth/login", "", loginRequest{Email: email, Senha: senha}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListOrders accepts either a bare array or {"pedidos": [...]}.
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/pedidos", nil, &raw); err != nil {
		return nil, err
	}
	var orders []model.Order
	if err := json.Unmarshal(raw, &orders); err == nil {
		return orders, nil
	}
	var wrapped struct {
		Orders []model.Order `json:"pedidos"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return wrapped.Orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	var o model.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/pedidos/%d", id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/pedidos/%d/status", id), statusRequest{Status: status}, nil)
}

func (c *Client) UpdateItemStatus(ctx context.Context, orderID, itemID int64, status string) error {
	path := fmt.Sprintf("/pedidos/%d/itens/%d/status", orderID, itemID)
	return c.do(ctx, http.MethodPatch, path, statusRequest{Status: status}, nil)
}

func (c *Client) AddItems(ctx context.Context, orderID int64, items []NewItem) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/pedidos/%d/itens", orderID), addItemsRequest{Items: items}, nil)
}

func (c *Client) RemoveItem(ctx context.Context, orderID, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/pedidos/%d/item/%d", orderID, itemID), nil, nil)
}

func (c *Client) CreateOrder(ctx context.Context, table int, items []NewItem) (*model.Order, error) {
	var o model.Order
	if err := c.do(ctx, http.MethodPost, "/pedidos", createOrderRequest{TableNumber: table, Items: items}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) Menu(ctx context.Context) ([]model.MenuItem, error) {
	var items []model.MenuItem
	if err := c.do(ctx, http.MethodGet, "/cardapio", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) RecordPayment(ctx context.Context, req PaymentRequest) (*model.PaymentReceipt, error) {
	var receipt model.PaymentReceipt
	if err := c.do(ctx, http.MethodPost, "/pagamentos", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
