package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/cart"
	"github.com/comandaweb/terminal/internal/checkout"
	"github.com/comandaweb/terminal/internal/enum"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/comandaweb/terminal/internal/storage"
	"github.com/comandaweb/terminal/internal/workflow"
	"github.com/comandaweb/terminal/internal/ws"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrConfirmationRequired = errors.New("confirm before marking the item as ready")
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidMethod        = errors.New("invalid payment method")
	ErrCannotCreateOrder    = errors.New("role cannot create orders")
)

// OrdersAPI is the slice of the backend client the service calls.
// Satisfied by *api.Client.
type OrdersAPI interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) error
	UpdateItemStatus(ctx context.Context, orderID, itemID int64, status string) error
	AddItems(ctx context.Context, orderID int64, items []api.NewItem) error
	RemoveItem(ctx context.Context, orderID, itemID int64) error
	CreateOrder(ctx context.Context, table int, items []api.NewItem) (*model.Order, error)
	RecordPayment(ctx context.Context, req api.PaymentRequest) (*model.PaymentReceipt, error)
}

// RoleSource yields the normalised role of the logged-in user, "" when logged out.
// Satisfied by *auth.Manager.
type RoleSource interface {
	Role(ctx context.Context) string
}

// Publisher pushes order snapshots to open screens. Satisfied by *ws.Hub.
type Publisher interface {
	PublishOrder(eventType string, o *model.Order)
}

// View is what a screen renders for one order.
type View struct {
	Order       *model.Order         `json:"pedido"`
	Affordances workflow.Affordances `json:"permissoes"`
}

// PaymentResult is the outcome of a successful checkout.
type PaymentResult struct {
	Receipt *model.PaymentReceipt `json:"pagamento"`
	Change  checkout.Result       `json:"troco"`
	Order   *model.Order          `json:"pedido"`
}

// OrderService owns the selected order. Every mutation re-reads the order from
// the backend first and is checked against the permission table on that fresh
// copy; the cached snapshot is only ever replaced by a successful read.
type OrderService struct {
	api    OrdersAPI
	roles  RoleSource
	store  storage.Store
	events Publisher

	mu      sync.Mutex
	current *model.Order
	// receipts holds payments recorded for orders whose finalizado update
	// has not gone through yet, keyed by order ID.
	receipts map[int64]*model.PaymentReceipt
}

// NewOrderService creates a new OrderService. store and events may be nil.
func NewOrderService(orders OrdersAPI, roles RoleSource, store storage.Store, events Publisher) *OrderService {
	return &OrderService{api: orders, roles: roles, store: store, events: events}
}

// Restore reloads the last selected order snapshot from the store.
func (s *OrderService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	var o model.Order
	ok, err := storage.GetJSON(ctx, s.store, storage.KeySelectedOrder, &o)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.current = &o
	}
	return nil
}

// Snapshot returns a copy of the selected order, or nil.
func (s *OrderService) Snapshot() *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Affordances computes the control state of the selected order for the current role.
func (s *OrderService) Affordances(ctx context.Context) workflow.Affordances {
	role := s.roles.Role(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return workflow.ComputeAffordances(role, s.current)
}

// List returns every order visible to the current session.
func (s *OrderService) List(ctx context.Context) ([]model.Order, error) {
	if _, err := s.role(ctx); err != nil {
		return nil, err
	}
	return s.api.ListOrders(ctx)
}

// Open selects an order. When cozinha or admin open an aberto order it moves
// to em_preparo.
func (s *OrderService) Open(ctx context.Context, id int64) (*View, error) {
	role, err := s.role(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.revalidate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.Authorize(role, workflow.ActionView, o, 0); err != nil {
		return nil, err
	}

	if next, ok := workflow.StatusOnOpen(role, o); ok {
		if err := s.api.UpdateOrderStatus(ctx, id, next); err != nil {
			log.Printf("WARNING: start preparation of order %d: %v", id, err)
		} else {
			o = s.reload(ctx, o)
			s.publish(ws.EventOrderUpdated, o)
		}
	}
	return s.view(role, o), nil
}

// MarkItemReady marks one pending item as pronto. The caller must pass
// confirmed once the user has acknowledged the change. When every item is
// ready the order advances to entregue.
func (s *OrderService) MarkItemReady(ctx context.Context, orderID, itemID int64, confirmed bool) (*View, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	role, err := s.role(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.revalidate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := workflow.Authorize(role, workflow.ActionMarkItemReady, o, itemID); err != nil {
		return nil, err
	}
	if err := s.api.UpdateItemStatus(ctx, orderID, itemID, enum.ItemStatusReady); err != nil {
		return nil, fmt.Errorf("mark item %d ready: %w", itemID, err)
	}
	o = s.reload(ctx, o)

	if err := s.syncDerivedStatus(ctx, o); err != nil {
		log.Printf("WARNING: order %d: %v", orderID, err)
	} else {
		o = s.reload(ctx, o)
	}
	s.publish(ws.EventItemReady, o)
	return s.view(role, o), nil
}

// syncDerivedStatus pushes the status implied by the item states, if it differs.
func (s *OrderService) syncDerivedStatus(ctx context.Context, o *model.Order) error {
	derived := workflow.DeriveStatus(o)
	if derived == o.Status {
		return nil
	}
	if err := workflow.CheckTransition(o.Status, derived); err != nil {
		return err
	}
	if err := s.api.UpdateOrderStatus(ctx, o.ID, derived); err != nil {
		return fmt.Errorf("update status to %s: %w", derived, err)
	}
	return nil
}

// AddItems appends items to an existing order. Adding to an entregue order
// sends it back to em_preparo.
func (s *OrderService) AddItems(ctx context.Context, orderID int64, items []api.NewItem) (*View, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	role, err := s.role(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.addItems(ctx, role, orderID, items)
	if err != nil {
		return nil, err
	}
	return s.view(role, o), nil
}

// addItems runs with s.mu held.
func (s *OrderService) addItems(ctx context.Context, role string, orderID int64, items []api.NewItem) (*model.Order, error) {
	o, err := s.revalidate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := workflow.Authorize(role, workflow.ActionAddItem, o, 0); err != nil {
		return nil, err
	}
	if err := s.api.AddItems(ctx, orderID, items); err != nil {
		return nil, fmt.Errorf("add items to order %d: %w", orderID, err)
	}
	if next, ok := workflow.StatusAfterAddingItems(o); ok {
		if err := s.api.UpdateOrderStatus(ctx, orderID, next); err != nil {
			return nil, fmt.Errorf("reopen order %d: %w", orderID, err)
		}
	}
	o = s.reload(ctx, o)
	s.publish(ws.EventOrderUpdated, o)
	return o, nil
}

// RemoveItem deletes a pending item from an aberto order.
func (s *OrderService) RemoveItem(ctx context.Context, orderID, itemID int64) (*View, error) {
	role, err := s.role(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.revalidate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := workflow.Authorize(role, workflow.ActionRemoveItem, o, itemID); err != nil {
		return nil, err
	}
	if err := s.api.RemoveItem(ctx, orderID, itemID); err != nil {
		return nil, fmt.Errorf("remove item %d: %w", itemID, err)
	}
	o = s.reload(ctx, o)
	s.publish(ws.EventOrderUpdated, o)
	return s.view(role, o), nil
}

// Cancel moves an aberto order to cancelado.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) (*View, error) {
	role, err := s.role(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.revalidate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := workflow.Authorize(role, workflow.ActionCancel, o, 0); err != nil {
		return nil, err
	}
	if err := workflow.CheckTransition(o.Status, enum.OrderStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.api.UpdateOrderStatus(ctx, orderID, enum.OrderStatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	o = s.reload(ctx, o)
	s.publish(ws.EventOrderUpdated, o)
	return s.view(role, o), nil
}

// PreviewChange computes troco against the order's total without any mutation.
// Only a role that may pay an entregue order gets a preview.
func (s *OrderService) PreviewChange(ctx context.Context, orderID int64, received decimal.Decimal) (checkout.Result, error) {
	role, err := s.role(ctx)
	if err != nil {
		return checkout.Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.revalidate(ctx, orderID)
	if err != nil {
		return checkout.Result{}, err
	}
	if err := workflow.Authorize(role, workflow.ActionPay, o, 0); err != nil {
		return checkout.Result{}, err
	}
	return checkout.Change(received, o.Total()), nil
}

// Pay records the payment and finalises an entregue order. An amount below the
// total is refused unless acceptShortfall is set. Every item must be pronto.
// When a previous attempt recorded the payment but failed to finalise, the
// recorded payment is reused and only the status update is sent again.
func (s *OrderService) Pay(ctx context.Context, orderID int64, received decimal.Decimal, method string, acceptShortfall bool) (*PaymentResult, error) {
	if method == "" {
		method = enum.PaymentMethodCash
	}
	if !enum.IsValidPaymentMethod(method) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}
	role, err := s.role(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.revalidate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := workflow.Authorize(role, workflow.ActionPay, o, 0); err != nil {
		return nil, err
	}
	if err := workflow.CheckTransition(o.Status, enum.OrderStatusFinished); err != nil {
		return nil, err
	}
	if workflow.DeriveStatus(o) != enum.OrderStatusDelivered || !workflow.AllItemsReady(o) {
		return nil, fmt.Errorf("%w: order %d has items not ready", workflow.ErrStatusNotAllowed, orderID)
	}

	receipt := s.pendingReceipt(ctx, orderID)
	if receipt != nil {
		if receipt.AmountPaid.IsPositive() {
			received = receipt.AmountPaid
		}
		acceptShortfall = true
	}
	change, err := checkout.Settle(received, o.Total(), acceptShortfall)
	if err != nil {
		return nil, err
	}

	if receipt == nil {
		receipt, err = s.api.RecordPayment(ctx, api.PaymentRequest{OrderID: orderID, AmountPaid: received, Method: method})
		if err != nil {
			return nil, fmt.Errorf("record payment for order %d: %w", orderID, err)
		}
		s.rememberReceipt(ctx, orderID, receipt)
	}
	if err := s.api.UpdateOrderStatus(ctx, orderID, enum.OrderStatusFinished); err != nil {
		return nil, fmt.Errorf("finalise order %d: %w", orderID, err)
	}
	s.rememberReceipt(ctx, orderID, nil)
	o = s.reload(ctx, o)
	s.publish(ws.EventOrderPaid, o)
	s.forget(ctx)

	return &PaymentResult{Receipt: receipt, Change: change, Order: o.Clone()}, nil
}

// SubmitCart sends the comanda: a new order for its table, or additions to the
// order being edited. The comanda is cleared only after the backend accepts it.
func (s *OrderService) SubmitCart(ctx context.Context, c *cart.Cart) (*model.Order, error) {
	role, err := s.role(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := c.Prepare()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var o *model.Order
	if sub.EditingOrder != 0 {
		if o, err = s.addItems(ctx, role, sub.EditingOrder, sub.Items); err != nil {
			return nil, err
		}
	} else {
		if !workflow.CanCreateOrder(role) {
			return nil, fmt.Errorf("%w: %s", ErrCannotCreateOrder, role)
		}
		created, err := s.api.CreateOrder(ctx, sub.Table, sub.Items)
		if err != nil {
			return nil, fmt.Errorf("create order for table %d: %w", sub.Table, err)
		}
		o = created
		if o.ID != 0 {
			if fresh, err := s.api.GetOrder(ctx, o.ID); err == nil {
				o = fresh
			}
		}
		s.publish(ws.EventOrderCreated, o)
	}

	if err := c.Clear(ctx); err != nil {
		log.Printf("ERROR: clear comanda after submit: %v", err)
	}
	return o.Clone(), nil
}

// --- helpers ---

func (s *OrderService) role(ctx context.Context) (string, error) {
	role := s.roles.Role(ctx)
	if role == "" {
		return "", api.ErrNotAuthenticated
	}
	return role, nil
}

// revalidate re-reads the order and makes it the selected snapshot.
// Callers hold s.mu.
func (s *OrderService) revalidate(ctx context.Context, id int64) (*model.Order, error) {
	o, err := s.api.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	s.setCurrent(ctx, o)
	return o, nil
}

// reload re-reads after a successful mutation. If the read fails the last good
// snapshot is kept and returned.
func (s *OrderService) reload(ctx context.Context, last *model.Order) *model.Order {
	o, err := s.api.GetOrder(ctx, last.ID)
	if err != nil {
		log.Printf("WARNING: reload order %d: %v", last.ID, err)
		return last
	}
	s.setCurrent(ctx, o)
	return o
}

func (s *OrderService) setCurrent(ctx context.Context, o *model.Order) {
	s.current = o.Clone()
	if s.store == nil {
		return
	}
	if err := storage.SetJSON(ctx, s.store, storage.KeySelectedOrder, o); err != nil {
		log.Printf("WARNING: persist selected order %d: %v", o.ID, err)
	}
}

func (s *OrderService) forget(ctx context.Context) {
	s.current = nil
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, storage.KeySelectedOrder); err != nil {
		log.Printf("WARNING: clear selected order: %v", err)
	}
}

// pendingReceipt returns the payment already recorded for an order that is
// still waiting for finalizado. Callers hold s.mu.
func (s *OrderService) pendingReceipt(ctx context.Context, orderID int64) *model.PaymentReceipt {
	if s.receipts == nil {
		s.receipts = map[int64]*model.PaymentReceipt{}
		if s.store != nil {
			if _, err := storage.GetJSON(ctx, s.store, storage.KeyPendingPaid, &s.receipts); err != nil {
				log.Printf("WARNING: load pending payments: %v", err)
			}
		}
	}
	return s.receipts[orderID]
}

// rememberReceipt stores r as pending for orderID, or clears it when r is nil.
// Callers hold s.mu.
func (s *OrderService) rememberReceipt(ctx context.Context, orderID int64, r *model.PaymentReceipt) {
	if s.receipts == nil {
		s.receipts = map[int64]*model.PaymentReceipt{}
	}
	if r == nil {
		delete(s.receipts, orderID)
	} else {
		s.receipts[orderID] = r
	}
	if s.store == nil {
		return
	}
	if err := storage.SetJSON(ctx, s.store, storage.KeyPendingPaid, s.receipts); err != nil {
		log.Printf("WARNING: persist pending payments: %v", err)
	}
}

func (s *OrderService) publish(eventType string, o *model.Order) {
	if s.events != nil {
		s.events.PublishOrder(eventType, o.Clone())
	}
}

func (s *OrderService) view(role string, o *model.Order) *View {
	c := o.Clone()
	return &View{Order: c, Affordances: workflow.ComputeAffordances(role, c)}
}

func validateItems(items []api.NewItem) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}
