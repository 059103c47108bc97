package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playarena/backend/internal/admin"
	"github.com/playarena/backend/internal/game"
	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/wallet"
)

// AdminAuth validates the X-Admin-Phone / X-Admin-Token header pair against
// the stored bcrypt hash.
func AdminAuth(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := c.GetHeader("X-Admin-Phone")
		token := c.GetHeader("X-Admin-Token")
		if phone == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin credentials required"})
			return
		}

		account, err := admin.GetAdminAccount(db, phone)
		if err != nil || !admin.VerifyAdminToken(account.TokenHash, token) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin credentials"})
			return
		}

		c.Set("adminPhone", phone)
		c.Next()
	}
}

// AdminCancelRoom cancels a WAITING room and refunds every entry fee.
func AdminCancelRoom(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("id")
		adminPhone := c.GetString("adminPhone")

		room, err := game.Manager.GetRoom(roomID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}

		cancelled := room.Cancel("cancelled by admin")
		admin.LogAdminAction(db, adminPhone, c.FullPath(), "cancel_room",
			map[string]interface{}{"room_id": roomID, "cancelled": cancelled}, cancelled)

		if !cancelled {
			c.JSON(http.StatusConflict, gin.H{"error": "room is not cancellable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}

// AdminListRooms lists recent rooms with their lifecycle state.
func AdminListRooms(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rooms []models.Room
		err := db.Select(&rooms, `SELECT id, type, max_players, entry_fee, prize_pool, status, engine_state, current_turn, winner_id, created_at, started_at, finished_at
			FROM rooms ORDER BY created_at DESC LIMIT 100`)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms, "active": game.Manager.ActiveRoomCount()})
	}
}

// AdminFinanceSummary aggregates completed ledger entries by kind.
func AdminFinanceSummary(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		type row struct {
			Kind  string  `db:"kind"`
			Total float64 `db:"total"`
			Count int     `db:"count"`
		}
		var rows []row
		err := db.Select(&rows, `SELECT kind, COALESCE(SUM(amount),0) AS total, COUNT(*) AS count
			FROM ledger WHERE status=$1 GROUP BY kind ORDER BY kind`, models.StatusCompleted)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": rows})
	}
}

// AdminCompleteWithdrawal marks a pending payout as settled by the gateway.
func AdminCompleteWithdrawal(db *sqlx.DB, w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pendingID := c.Param("id")
		adminPhone := c.GetString("adminPhone")

		err := w.CompleteWithdrawal(c.Request.Context(), pendingID)
		admin.LogAdminAction(db, adminPhone, c.FullPath(), "complete_withdrawal",
			map[string]interface{}{"pending_id": pendingID}, err == nil)
		respondWithdrawal(c, err)
	}
}

// AdminFailWithdrawal marks a payout failed and refunds the hold.
func AdminFailWithdrawal(db *sqlx.DB, w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pendingID := c.Param("id")
		adminPhone := c.GetString("adminPhone")

		err := w.FailWithdrawal(c.Request.Context(), pendingID)
		admin.LogAdminAction(db, adminPhone, c.FullPath(), "fail_withdrawal",
			map[string]interface{}{"pending_id": pendingID}, err == nil)
		respondWithdrawal(c, err)
	}
}

func respondWithdrawal(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wallet.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown withdrawal"})
	case errors.Is(err, wallet.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "withdrawal already settled"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
