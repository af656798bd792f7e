package socketserver

import (
	"sync"

	"github.com/codefionn/bookshelf/internal/logger"
)

// Hub maintains the set of active clients
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	// Register/unregister requests from clients
	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until Shutdown.
func (h *Hub) Run() {
	logger.Debug("Socket hub started")
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.done:
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	logger.Debug("Socket client registered: %s (total: %d)", client.ID, len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		logger.Debug("Socket client unregistered: %s (total: %d)", client.ID, len(h.clients))
	}
}

// RegisterClient adds a client (called from client goroutine)
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// UnregisterClient removes a client (called from client goroutine)
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown stops Run and closes all client connections
func (h *Hub) Shutdown() {
	h.doneOnce.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	if len(clients) > 0 {
		logger.Info("Closing %d client connections", len(clients))
	}
	for _, client := range clients {
		client.Close()
	}
}
