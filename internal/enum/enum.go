package enum

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ── Group A: State machines ──

const (
	OrderStatusOpen      = "aberto"
	OrderStatusPreparing = "em_preparo"
	OrderStatusDelivered = "entregue"
	OrderStatusFinished  = "finalizado"
	OrderStatusCancelled = "cancelado"
)

const (
	ItemStatusPending = "pendente"
	ItemStatusReady   = "pronto"
)

// Older screens spoke pendente/pronto at the order level. Accepted on input,
// never produced.
const (
	LegacyOrderStatusPending = "pendente"
	LegacyOrderStatusReady   = "pronto"
)

var legacyOrderStatus = map[string]string{
	LegacyOrderStatusPending: OrderStatusPreparing,
	LegacyOrderStatusReady:   OrderStatusDelivered,
}

// NormalizeOrderStatus maps any accepted spelling to the canonical vocabulary.
// Unknown values are returned lower-cased and trimmed so callers can reject them.
func NormalizeOrderStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := legacyOrderStatus[s]; ok {
		return c
	}
	return s
}

func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusOpen, OrderStatusPreparing, OrderStatusDelivered,
		OrderStatusFinished, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further mutation is allowed.
func IsTerminal(status string) bool {
	return status == OrderStatusFinished || status == OrderStatusCancelled
}

// ── Group B: Configurable labels ──

const (
	PaymentMethodCash    = "dinheiro"
	PaymentMethodCard    = "cartao"
	PaymentMethodPix     = "pix"
	PaymentMethodVoucher = "vale"
)

func IsValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodPix, PaymentMethodVoucher:
		return true
	}
	return false
}

const (
	MenuTypeDishes = "Pratos"
	MenuTypeDrinks = "Bebidas"

	// MenuCategoryAll disables the category filter.
	MenuCategoryAll = "Todos"
)

// ── Group C: Roles ──

const (
	RoleWaiter  = "garcom"
	RoleAdmin   = "admin"
	RoleKitchen = "cozinha"
	RoleCashier = "caixa"
)

// NormalizeRole folds accents and case, so "Garçom" and "garcom" compare equal.
// A transform chain carries state, so each call builds its own.
func NormalizeRole(role string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripMarks, strings.TrimSpace(role))
	if err != nil {
		out = role
	}
	return strings.ToLower(out)
}

func IsValidRole(role string) bool {
	switch role {
	case RoleWaiter, RoleAdmin, RoleKitchen, RoleCashier:
		return true
	}
	return false
}
