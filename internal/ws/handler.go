package ws

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/playarena/backend/internal/auth"
	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Every origin is accepted, in every environment
	},
}

// Client is one live websocket connection bound to an authenticated user.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
}

// HandleWebSocket upgrades the connection after validating the bearer token
// presented at handshake (query ?token= or Authorization header).
func HandleWebSocket(hub *Hub, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		userID, err := auth.ParseToken(token, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] upgrade error: %v", err)
			return
		}

		client := &Client{
			id:     uuid.NewString(),
			userID: userID,
			conn:   conn,
			hub:    hub,
			send:   make(chan []byte, 256),
		}
		hub.add(client)
		log.Printf("[WS] user %s connected (conn %s)", userID, client.id)

		go client.writePump()
		go client.readPump()
	}
}

// readPump reads inbound events until the transport drops.
func (c *Client) readPump() {
	defer func() {
		if lastConn := c.hub.remove(c); lastConn {
			// Offline notice, not a cancellation: committed side effects stay.
			if game.Manager != nil {
				game.Manager.HandleDisconnect(c.userID)
			}
		}
		c.conn.Close()
		log.Printf("[WS] user %s disconnected (conn %s)", c.userID, c.id)
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] unexpected close for user %s: %v", c.userID, err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump drains the send channel; one writer per connection keeps delivery
// ordered.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] write error for user %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
