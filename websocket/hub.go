package websocket

import (
	"sync"

	"sonora/logger"
	"sonora/services"
	"sonora/types"
)

// Hub maintains the set of active WebSocket clients and fans server-pushed
// envelopes out to them.
type Hub interface {
	Run()
	Broadcast(msg types.WSMessage)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

// hub is the channel-driven Hub implementation.
type hub struct {
	connections *services.ConnectionManager

	clients map[*Client]bool

	broadcast  chan types.WSMessage
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a hub that records identified devices in connections.
func NewHub(connections *services.ConnectionManager) Hub {
	return &hub{
		connections: connections,
		clients:     make(map[*Client]bool),
		broadcast:   make(chan types.WSMessage, 64),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
	}
}

// Run starts the hub's main event loop.
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("websocket client attached")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Debug("websocket client detached", logger.String("deviceId", client.DeviceID()))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an envelope for every connected client, dropping it if the
// hub is saturated.
func (h *hub) Broadcast(msg types.WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn("websocket broadcast channel full, dropping message",
			logger.String("type", msg.Type))
	}
}

// RegisterClient registers a new client with the hub.
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client from the hub.
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
