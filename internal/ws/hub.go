package ws

import (
	"encoding/json"
	"sync"
)

// Event types pushed to dashboard clients.
const (
	EventOrderCreated  = "order.created"
	EventStatusUpdated = "order.status_updated"
	EventBillClosed    = "bill.closed"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// shopEvent is an internal struct for routing events to one restaurant's room
type shopEvent struct {
	OwnerEmail string
	Event      Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Rooms are keyed by owner email, so each restaurant's dashboards only see
// their own traffic.
type Hub struct {
	// Registered clients by owner email
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *shopEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *shopEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.ownerEmail] == nil {
				h.rooms[client.ownerEmail] = make(map[*Client]bool)
			}
			h.rooms[client.ownerEmail][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.ownerEmail]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.ownerEmail)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.OwnerEmail]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients in this restaurant's room
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.OwnerEmail], client)
					if len(h.rooms[event.OwnerEmail]) == 0 {
						delete(h.rooms, event.OwnerEmail)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToShop sends an event to all clients subscribed to one restaurant.
// This is the public API for handlers to broadcast events.
func (h *Hub) BroadcastToShop(ownerEmail string, event Event) {
	h.broadcast <- &shopEvent{
		OwnerEmail: ownerEmail,
		Event:      event,
	}
}
