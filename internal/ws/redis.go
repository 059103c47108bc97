package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// StartRoomEventSubscriber relays room_events published by room workers (in
// this or any other process) to the local room audiences.
func StartRoomEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; room event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, "room_events")
	ch := pubsub.Channel()
	go func() {
		log.Println("[WS] room_events subscriber started")
		for msg := range ch {
			var payload struct {
				Type   string                 `json:"type"`
				RoomID string                 `json:"room_id"`
				Data   map[string]interface{} `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				log.Printf("[WS] invalid room event payload: %v", err)
				continue
			}
			if payload.Type == "" || payload.RoomID == "" {
				continue
			}
			hub.ToRoom(payload.RoomID, payload.Type, payload.Data)
		}
	}()
}
