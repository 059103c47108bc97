package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playarena/backend/internal/store"
)

// GetGameState serves the persisted view of a room for participants; the live
// feed comes over the websocket.
func GetGameState(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("id")
		userID := c.GetString("userID")

		ok, err := st.IsParticipant(c.Request.Context(), roomID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this game"})
			return
		}

		room, err := st.GetRoom(c.Request.Context(), roomID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if room == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		participants, err := st.Participants(c.Request.Context(), roomID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"room": room, "participants": participants})
	}
}

// GetQueueStatus reports whether the user currently waits in matchmaking.
func GetQueueStatus(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		waiting, err := st.QueuedUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"waiting": waiting})
	}
}
