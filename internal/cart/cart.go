// Package cart is the comanda: the lines a waiter collects for a table before
// they become an order, persisted after every change.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/comandaweb/terminal/internal/storage"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart       = errors.New("comanda is empty")
	ErrNoTable         = errors.New("select a table number first")
	ErrInvalidTable    = errors.New("table number must be a positive integer")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrLineNotFound    = errors.New("comanda line not found")
)

// Cart is safe for concurrent use. Every mutation is written back to the store
// before it returns; a failed write leaves the in-memory cart unchanged.
type Cart struct {
	store   storage.Store
	mu      sync.Mutex
	entries []model.CartEntry
	table   int
	editing int64
}

// Load restores the comanda, the table number and the editing marker.
func Load(ctx context.Context, store storage.Store) (*Cart, error) {
	c := &Cart{store: store}
	if _, err := storage.GetJSON(ctx, store, storage.KeyCart, &c.entries); err != nil {
		return nil, err
	}
	var err error
	if c.table, err = loadInt(ctx, store, storage.KeyTable); err != nil {
		return nil, err
	}
	editing, err := loadInt(ctx, store, storage.KeyEditingOrder)
	if err != nil {
		return nil, err
	}
	c.editing = int64(editing)
	return c, nil
}

func loadInt(ctx context.Context, store storage.Store, key string) (int, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// Add puts qty units of item on the comanda. Without a note the units merge
// into the existing note-less line for the same item; with a note they always
// start a new line.
func (c *Cart) Add(ctx context.Context, item model.MenuItem, qty int, note string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	note = strings.TrimSpace(note)

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.copyEntries()
	merged := false
	if note == "" {
		for i := range next {
			if next[i].CatalogItemID == item.ID && next[i].Note == "" {
				next[i].Quantity += qty
				merged = true
				break
			}
		}
	}
	if !merged {
		next = append(next, model.CartEntry{
			CatalogItemID: item.ID,
			Name:          item.Name,
			Price:         item.Price,
			Quantity:      qty,
			Note:          note,
		})
	}
	return c.save(ctx, next)
}

// Decrement removes one unit from the first line for catalogID, dropping the
// line when it reaches zero.
func (c *Cart) Decrement(ctx context.Context, catalogID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.copyEntries()
	for i := range next {
		if next[i].CatalogItemID != catalogID {
			continue
		}
		next[i].Quantity--
		if next[i].Quantity <= 0 {
			next = append(next[:i], next[i+1:]...)
		}
		return c.save(ctx, next)
	}
	return fmt.Errorf("%w: item %d", ErrLineNotFound, catalogID)
}

// SetNote replaces the note of the line at index.
func (c *Cart) SetNote(ctx context.Context, index int, note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.entries) {
		return fmt.Errorf("%w: index %d", ErrLineNotFound, index)
	}
	next := c.copyEntries()
	next[index].Note = strings.TrimSpace(note)
	return c.save(ctx, next)
}

func (c *Cart) save(ctx context.Context, next []model.CartEntry) error {
	if next == nil {
		next = []model.CartEntry{}
	}
	if err := storage.SetJSON(ctx, c.store, storage.KeyCart, next); err != nil {
		return err
	}
	c.entries = next
	return nil
}

func (c *Cart) copyEntries() []model.CartEntry {
	return append([]model.CartEntry(nil), c.entries...)
}

// Clear empties the comanda and drops the editing marker. The table stays.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.save(ctx, nil); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, storage.KeyEditingOrder); err != nil {
		return err
	}
	c.editing = 0
	return nil
}

// SetTable validates and stores the table number.
func (c *Cart) SetTable(ctx context.Context, table int) error {
	if table <= 0 {
		return ErrInvalidTable
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Set(ctx, storage.KeyTable, strconv.Itoa(table)); err != nil {
		return err
	}
	c.table = table
	return nil
}

// ParseTable accepts the raw text typed into the table field.
func ParseTable(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, ErrInvalidTable
	}
	return n, nil
}

// SetEditingOrder marks the comanda as additions to an existing order.
// Zero clears the marker.
func (c *Cart) SetEditingOrder(ctx context.Context, orderID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if orderID == 0 {
		err = c.store.Delete(ctx, storage.KeyEditingOrder)
	} else {
		err = c.store.Set(ctx, storage.KeyEditingOrder, strconv.FormatInt(orderID, 10))
	}
	if err != nil {
		return err
	}
	c.editing = orderID
	return nil
}

func (c *Cart) EditingOrder() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

func (c *Cart) Table() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table
}

// Entries returns a copy of the lines.
func (c *Cart) Entries() []model.CartEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyEntries()
}

func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, e := range c.entries {
		total = total.Add(e.Subtotal())
	}
	return total
}

// Count is the number of units on the comanda.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		n += e.Quantity
	}
	return n
}

// Submission is what the comanda turns into when sent.
type Submission struct {
	Table        int
	EditingOrder int64
	Items        []api.NewItem
}

// Prepare validates the comanda for sending. A new order needs a table; a
// comanda editing an existing order does not.
func (c *Cart) Prepare() (*Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editing == 0 && c.table <= 0 {
		return nil, ErrNoTable
	}
	if len(c.entries) == 0 {
		return nil, ErrEmptyCart
	}
	sub := &Submission{Table: c.table, EditingOrder: c.editing}
	for _, e := range c.entries {
		sub.Items = append(sub.Items, api.NewItem{
			CatalogItemID: e.CatalogItemID,
			Quantity:      e.Quantity,
			Note:          e.Note,
		})
	}
	return sub, nil
}
