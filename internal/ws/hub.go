package ws

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"

	"github.com/comandaweb/terminal/internal/model"
)

// RoomAll receives every order event. Each order also has its own room.
const RoomAll = "all"

// Event types published by the order service.
const (
	EventOrderCreated = "pedido.criado"
	EventOrderUpdated = "pedido.atualizado"
	EventItemReady    = "item.pronto"
	EventOrderPaid    = "pedido.pago"
)

// Event is one message pushed to open screens.
type Event struct {
	Type    string          `json:"type"`
	OrderID int64           `json:"id_pedido,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// OrderRoom is the room of screens showing a single order.
func OrderRoom(orderID int64) string {
	return "pedido:" + strconv.FormatInt(orderID, 10)
}

type roomEvent struct {
	rooms []string
	event Event
}

// Hub keeps the connected screens grouped by room and fans events out to them.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent
	// done is closed when Run returns; sends after that are dropped.
	done chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for room, clients := range h.rooms {
				for c := range clients {
					close(c.send)
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.event)
			if err != nil {
				log.Printf("ERROR: marshal ws event %s: %v", ev.event.Type, err)
				continue
			}
			h.mu.Lock()
			for _, room := range ev.rooms {
				for client := range h.rooms[room] {
					select {
					case client.send <- message:
					default:
						// slow consumer
						h.drop(client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client and closes its queue. Callers hold h.mu.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

// join registers client. It reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues event for the given rooms. Events sent after Run has
// returned are discarded.
func (h *Hub) Broadcast(event Event, rooms ...string) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- &roomEvent{rooms: rooms, event: event}:
	case <-h.done:
	}
}

// PublishOrder sends the order snapshot to its own room and to RoomAll.
func (h *Hub) PublishOrder(eventType string, o *model.Order) {
	if o == nil {
		return
	}
	payload, err := json.Marshal(o)
	if err != nil {
		log.Printf("ERROR: marshal order %d: %v", o.ID, err)
		return
	}
	h.Broadcast(Event{Type: eventType, OrderID: o.ID, Payload: payload}, RoomAll, OrderRoom(o.ID))
}

// Clients counts the connections in room.
func (h *Hub) Clients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
