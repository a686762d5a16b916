package workflow

import (
	"fmt"

	"github.com/comandaweb/terminal/internal/enum"
	"github.com/comandaweb/terminal/internal/model"
)

type Action string

const (
	ActionView             Action = "view_order"
	ActionStartPreparation Action = "start_preparation"
	ActionMarkItemReady    Action = "mark_item_ready"
	ActionAddItem          Action = "add_item"
	ActionRemoveItem       Action = "remove_item"
	ActionCancel           Action = "cancel_order"
	ActionPay              Action = "pay"
)

var everyStatus = []string{
	enum.OrderStatusOpen,
	enum.OrderStatusPreparing,
	enum.OrderStatusDelivered,
	enum.OrderStatusFinished,
	enum.OrderStatusCancelled,
}

// permissions maps action -> role -> statuses in which the role may act.
// A role missing from an action's row may never perform it.
var permissions = map[Action]map[string][]string{
	ActionView: {
		enum.RoleWaiter:  everyStatus,
		enum.RoleAdmin:   everyStatus,
		enum.RoleKitchen: everyStatus,
		enum.RoleCashier: everyStatus,
	},
	ActionStartPreparation: {
		enum.RoleAdmin:   {enum.OrderStatusOpen},
		enum.RoleKitchen: {enum.OrderStatusOpen},
	},
	ActionMarkItemReady: {
		enum.RoleAdmin:   {enum.OrderStatusPreparing},
		enum.RoleKitchen: {enum.OrderStatusPreparing},
	},
	ActionAddItem: {
		enum.RoleWaiter: {enum.OrderStatusOpen, enum.OrderStatusDelivered},
		enum.RoleAdmin:  {enum.OrderStatusOpen, enum.OrderStatusPreparing, enum.OrderStatusDelivered},
	},
	ActionRemoveItem: {
		enum.RoleWaiter: {enum.OrderStatusOpen},
	},
	ActionCancel: {
		enum.RoleWaiter: {enum.OrderStatusOpen},
		enum.RoleAdmin:  {enum.OrderStatusOpen},
	},
	ActionPay: {
		enum.RoleAdmin:   {enum.OrderStatusDelivered},
		enum.RoleCashier: {enum.OrderStatusDelivered},
	},
}

// orderCreators may turn a comanda into a new order.
var orderCreators = []string{enum.RoleWaiter, enum.RoleAdmin}

// Authorize checks role (already normalised) against the permission table for
// the given order. itemID is only consulted by item-level actions.
func Authorize(role string, action Action, o *model.Order, itemID int64) error {
	if o == nil {
		return ErrNoOrder
	}
	if action != ActionView && enum.IsTerminal(o.Status) {
		return fmt.Errorf("%w: %s", ErrTerminalStatus, o.Status)
	}

	statuses, ok := permissions[action][role]
	if !ok {
		return fmt.Errorf("%w: %s cannot %s", ErrRoleNotAllowed, role, action)
	}
	if !contains(statuses, o.Status) {
		return fmt.Errorf("%w: %s while %s", ErrStatusNotAllowed, action, o.Status)
	}

	switch action {
	case ActionMarkItemReady, ActionRemoveItem:
		it, found := o.FindItem(itemID)
		if !found {
			return fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
		}
		if it.IsReady() {
			return ErrItemAlreadyReady
		}
	}
	return nil
}

// Can is Authorize as a boolean.
func Can(role string, action Action, o *model.Order, itemID int64) bool {
	return Authorize(role, action, o, itemID) == nil
}

func CanCreateOrder(role string) bool {
	return contains(orderCreators, role)
}

// AllowedRoles lists the roles that may ever perform action.
func AllowedRoles(action Action) []string {
	var roles []string
	for _, r := range []string{enum.RoleWaiter, enum.RoleAdmin, enum.RoleKitchen, enum.RoleCashier} {
		if _, ok := permissions[action][r]; ok {
			roles = append(roles, r)
		}
	}
	return roles
}

// ItemAffordance is the per-line state of the summary screen.
type ItemAffordance struct {
	ItemID    int64  `json:"id"`
	Icon      string `json:"icone"`
	Clickable bool   `json:"clicavel"`
	Removable bool   `json:"removivel"`
}

// Affordances is the enabled/disabled state of every control on the order
// summary, computed from the same table Authorize uses.
type Affordances struct {
	Role       string           `json:"role"`
	Status     string           `json:"status"`
	AddItem    bool             `json:"adicionar_item"`
	Cancel     bool             `json:"cancelar"`
	Pay        bool             `json:"calcular_troco"`
	MarkReady  bool             `json:"marcar_pronto"`
	RemoveItem bool             `json:"remover_item"`
	Items      []ItemAffordance `json:"itens"`
}

const (
	iconReady   = "✓"
	iconPending = "⏰"
)

func ComputeAffordances(role string, o *model.Order) Affordances {
	a := Affordances{Role: role}
	if o == nil {
		return a
	}
	a.Status = o.Status
	a.AddItem = Can(role, ActionAddItem, o, 0)
	a.Cancel = Can(role, ActionCancel, o, 0)
	a.Pay = Can(role, ActionPay, o, 0)

	for _, it := range o.Items {
		ia := ItemAffordance{ItemID: it.ID, Icon: iconPending}
		if it.IsReady() {
			ia.Icon = iconReady
		}
		ia.Clickable = Can(role, ActionMarkItemReady, o, it.ID)
		ia.Removable = Can(role, ActionRemoveItem, o, it.ID)
		a.MarkReady = a.MarkReady || ia.Clickable
		a.RemoveItem = a.RemoveItem || ia.Removable
		a.Items = append(a.Items, ia)
	}
	return a
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
