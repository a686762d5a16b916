// Package workflow holds the order status state machine and the role x status
// permission table shared by screen rendering and action handlers.
package workflow

import (
	"errors"
	"fmt"

	"github.com/comandaweb/terminal/internal/enum"
	"github.com/comandaweb/terminal/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRoleNotAllowed    = errors.New("role not allowed for this action")
	ErrStatusNotAllowed  = errors.New("order status does not allow this action")
	ErrTerminalStatus    = errors.New("order is finalised or cancelled")
	ErrItemNotFound      = errors.New("item not found in order")
	ErrItemAlreadyReady  = errors.New("item is already ready")
	ErrNoOrder           = errors.New("no order selected")
)

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[string][]string{
	enum.OrderStatusOpen:      {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusDelivered},
	enum.OrderStatusDelivered: {enum.OrderStatusPreparing, enum.OrderStatusFinished},
}

// CheckTransition checks if the transition from current to next is allowed.
func CheckTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
}

// AllItemsReady is false for an order with no items.
func AllItemsReady(o *model.Order) bool {
	if o == nil || len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if !it.IsReady() {
			return false
		}
	}
	return true
}

// DeriveStatus returns the status implied by the item states: all items ready
// advances em_preparo to entregue, any pending item pulls entregue back to
// em_preparo. Every other status is returned as is: an aberto order stays
// aberto even when all its items are pronto, because entregue is only reached
// from em_preparo and aberto must first be opened by the kitchen.
func DeriveStatus(o *model.Order) string {
	if o == nil {
		return ""
	}
	switch o.Status {
	case enum.OrderStatusPreparing:
		if AllItemsReady(o) {
			return enum.OrderStatusDelivered
		}
	case enum.OrderStatusDelivered:
		if !AllItemsReady(o) {
			return enum.OrderStatusPreparing
		}
	}
	return o.Status
}

// StatusOnOpen is the status an order should move to when role opens its
// summary, and whether a change is needed at all.
func StatusOnOpen(role string, o *model.Order) (string, bool) {
	if o == nil || o.Status != enum.OrderStatusOpen {
		return "", false
	}
	if Authorize(role, ActionStartPreparation, o, 0) != nil {
		return "", false
	}
	return enum.OrderStatusPreparing, true
}

// StatusAfterAddingItems reports whether appending items reopens preparation.
func StatusAfterAddingItems(o *model.Order) (string, bool) {
	if o != nil && o.Status == enum.OrderStatusDelivered {
		return enum.OrderStatusPreparing, true
	}
	return "", false
}
