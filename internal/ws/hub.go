package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/registry"
	"github.com/playarena/backend/internal/store"
)

// Hub holds the live clients and fans outbound events out to their
// connections. Addressing goes through the connection registry; delivery
// order is guaranteed per recipient connection only.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // connection id -> client
	reg     *registry.Registry
	store   *store.Store
	cfg     *config.Config
}

func NewHub(reg *registry.Registry, st *store.Store, cfg *config.Config) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		reg:     reg,
		store:   st,
		cfg:     cfg,
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.reg.Attach(c.id, c.userID)
}

func (h *Hub) remove(c *Client) (lastConn bool) {
	h.mu.Lock()
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	userID, _ := h.reg.Detach(c.id)
	return userID != "" && !h.reg.IsUserOnline(userID)
}

// envelope is the outbound wire format.
type envelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

func (h *Hub) sendToConn(connID string, payload []byte) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Printf("[WS] send buffer full for conn %s, dropping message", connID)
	}
}

// ToUser delivers to every connection the user holds. Implements
// game.Emitter.
func (h *Hub) ToUser(userID, event string, data map[string]interface{}) {
	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		log.Printf("[WS] marshal error for event %s: %v", event, err)
		return
	}
	for _, connID := range h.reg.ConnsOfUser(userID) {
		h.sendToConn(connID, payload)
	}
}

// ToRoom delivers to the room's audience.
func (h *Hub) ToRoom(roomID, event string, data map[string]interface{}) {
	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		log.Printf("[WS] marshal error for event %s: %v", event, err)
		return
	}
	for _, userID := range h.reg.UsersInRoom(roomID) {
		for _, connID := range h.reg.ConnsOfUser(userID) {
			h.sendToConn(connID, payload)
		}
	}
}

// sendError reports a user-visible failure on one connection.
func (h *Hub) sendError(connID, message string) {
	payload, _ := json.Marshal(envelope{Event: "error", Data: map[string]interface{}{"message": message}})
	h.sendToConn(connID, payload)
}
