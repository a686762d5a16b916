package model

import (
	"encoding/json"
	"time"

	"github.com/comandaweb/terminal/internal/enum"
	"github.com/shopspring/decimal"
)

// Order mirrors the backend's pedido payload.
type Order struct {
	ID          int64           `json:"id"`
	CreatedAt   time.Time       `json:"criado_em"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"valor_total"`
	TableNumber int             `json:"numero_mesa"`
	Items       []OrderItem     `json:"itens"`
}

// OrderItem is a line of an order as stored by the backend.
type OrderItem struct {
	ID            int64           `json:"id"`
	CatalogItemID int64           `json:"id_item"`
	Name          string          `json:"nome"`
	Quantity      int             `json:"quantidade"`
	UnitPrice     decimal.Decimal `json:"preco_unitario"`
	TotalPrice    decimal.Decimal `json:"preco_total"`
	Note          string          `json:"observacao,omitempty"`
	Status        string          `json:"status"`
}

// UnmarshalJSON normalises legacy status spellings so the rest of the
// program only ever sees the canonical vocabulary.
func (o *Order) UnmarshalJSON(b []byte) error {
	type alias Order
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*o = Order(a)
	o.Status = enum.NormalizeOrderStatus(o.Status)
	for i := range o.Items {
		if o.Items[i].Status == "" {
			o.Items[i].Status = enum.ItemStatusPending
		}
	}
	return nil
}

// LineTotal prefers the backend's total and falls back to unit price * quantity.
func (it OrderItem) LineTotal() decimal.Decimal {
	if !it.TotalPrice.IsZero() {
		return it.TotalPrice
	}
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it OrderItem) IsReady() bool {
	return it.Status == enum.ItemStatusReady
}

// Total returns valor_total, or the sum of the lines when the backend left it out.
func (o *Order) Total() decimal.Decimal {
	if !o.TotalAmount.IsZero() {
		return o.TotalAmount
	}
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// ItemCount is the number of units across all lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) FindItem(id int64) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return OrderItem{}, false
}

// Clone returns a deep copy safe to hand to renderers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RoleKey is the normalised role ("Garçom" -> "garcom").
func (u *User) RoleKey() string {
	if u == nil {
		return ""
	}
	return enum.NormalizeRole(u.Role)
}

type Session struct {
	Token     string    `json:"token"`
	User      *User     `json:"user"`
	LoginTime time.Time `json:"login_time"`
}

// CartEntry is a line of the comanda before the order exists.
type CartEntry struct {
	CatalogItemID int64           `json:"id_item"`
	Name          string          `json:"nome"`
	Price         decimal.Decimal `json:"preco"`
	Quantity      int             `json:"quantidade"`
	Note          string          `json:"observacao"`
}

func (e CartEntry) Subtotal() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

type MenuItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"nome"`
	Price       decimal.Decimal `json:"preco"`
	Type        string          `json:"tipo"`
	Category    string          `json:"categoria"`
	Description string          `json:"descricao,omitempty"`
	Image       string          `json:"imagem,omitempty"`
}

type PaymentReceipt struct {
	OrderID    int64           `json:"id_pedido"`
	AmountPaid decimal.Decimal `json:"valor_pago"`
	Change     decimal.Decimal `json:"troco"`
	Method     string          `json:"metodo"`
}
