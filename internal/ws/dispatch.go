package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/playarena/backend/internal/game"
	"github.com/playarena/backend/internal/game/engine"
	"github.com/playarena/backend/internal/models"
)

// inboundMessage is the inbound wire format: an event name plus its payload.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinMatchmakingData struct {
	GameType   string  `json:"gameType"`
	MaxPlayers int     `json:"maxPlayers"`
	EntryFee   float64 `json:"entryFee"`
}

type gameRoomData struct {
	GameID string `json:"gameId"`
}

// handleMessage validates each event's payload and dispatches by name. The
// connection's user was authenticated at attach. Unknown events are ignored
// with a diagnostic.
func (c *Client) handleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.hub.sendError(c.id, "malformed message")
		return
	}

	switch msg.Event {
	case "joinMatchmaking":
		c.handleJoinMatchmaking(msg.Data)
	case "leaveMatchmaking":
		c.handleLeaveMatchmaking()
	case "joinGameRoom":
		c.handleJoinGameRoom(msg.Data)
	case "rollDice", "movePiece", "selectCard":
		c.handleGameAction(msg.Event, msg.Data)
	default:
		log.Printf("[WS] ignoring unknown event %q from user %s", msg.Event, c.userID)
	}
}

func (c *Client) handleJoinMatchmaking(data json.RawMessage) {
	var req joinMatchmakingData
	if err := json.Unmarshal(data, &req); err != nil {
		c.hub.sendError(c.id, "invalid joinMatchmaking payload")
		return
	}
	if !models.ValidGameType(req.GameType) {
		c.hub.sendError(c.id, "unknown game type")
		return
	}
	if req.MaxPlayers < 2 || req.MaxPlayers > 4 {
		c.hub.sendError(c.id, "maxPlayers must be between 2 and 4")
		return
	}
	if req.EntryFee < c.hub.cfg.MinEntryFee || req.EntryFee > c.hub.cfg.MaxEntryFee {
		c.hub.sendError(c.id, "entry fee out of range")
		return
	}

	if err := c.hub.store.Enqueue(context.Background(), c.userID, req.GameType, req.MaxPlayers, req.EntryFee); err != nil {
		log.Printf("[WS] enqueue failed for user %s: %v", c.userID, err)
		c.hub.sendError(c.id, "could not join matchmaking")
		return
	}

	c.hub.ToUser(c.userID, "matchmakingStatus", map[string]interface{}{"status": "waiting"})
}

func (c *Client) handleLeaveMatchmaking() {
	if _, err := c.hub.store.Dequeue(context.Background(), c.userID); err != nil {
		log.Printf("[WS] dequeue failed for user %s: %v", c.userID, err)
		c.hub.sendError(c.id, "could not leave matchmaking")
		return
	}
	c.hub.ToUser(c.userID, "matchmakingStatus", map[string]interface{}{"status": "left"})
}

func (c *Client) handleJoinGameRoom(data json.RawMessage) {
	var req gameRoomData
	if err := json.Unmarshal(data, &req); err != nil || req.GameID == "" {
		c.hub.sendError(c.id, "invalid joinGameRoom payload")
		return
	}

	room, err := game.Manager.GetRoom(req.GameID)
	if err != nil {
		c.hub.sendError(c.id, "game not found")
		return
	}
	room.HandleJoin(c.userID)
}

func (c *Client) handleGameAction(event string, data json.RawMessage) {
	var req gameRoomData
	if err := json.Unmarshal(data, &req); err != nil || req.GameID == "" {
		c.hub.sendError(c.id, "gameId required")
		return
	}

	room, err := game.Manager.GetRoom(req.GameID)
	if err != nil {
		c.hub.sendError(c.id, "game not found")
		return
	}
	room.HandleAction(c.userID, engine.Action{Name: event, Data: data})
}
