package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans file change notifications out to every live connection of
// the owner they concern. Connections of other owners never see them.
type Hub struct {
	clients    map[string]map[*Client]bool
	mu         sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	logger     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.Owner]; !ok {
		h.clients[client.Owner] = make(map[*Client]bool)
	}
	h.clients[client.Owner][client] = true
	h.logger.Debug().Str("owner", client.Owner).Str("client_id", client.ID).Msg("client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ownerClients, ok := h.clients[client.Owner]; ok {
		if _, ok := ownerClients[client]; ok {
			delete(ownerClients, client)
			close(client.send)
			if len(ownerClients) == 0 {
				delete(h.clients, client.Owner)
			}
			h.logger.Debug().Str("owner", client.Owner).Str("client_id", client.ID).Msg("client unregistered")
		}
	}
}

// NotifyOwner serializes the payload and pushes it to each of the
// owner's connections. Slow consumers get dropped messages, not a
// blocked hub.
func (h *Hub) NotifyOwner(owner string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("owner", owner).Msg("marshaling notification failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if ownerClients, ok := h.clients[owner]; ok {
		for client := range ownerClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn().Str("owner", owner).Str("client_id", client.ID).Msg("send buffer full, dropping message")
			}
		}
	}
}
