package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playarena/backend/internal/api/handlers"
	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/middleware"
	"github.com/playarena/backend/internal/store"
	"github.com/playarena/backend/internal/wallet"
	"github.com/playarena/backend/internal/ws"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, st *store.Store, w *wallet.Service, hub *ws.Hub, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Auth
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/otp/request", handlers.RequestOTP(db, rdb, cfg))
			authGroup.POST("/otp/verify", handlers.VerifyOTP(db, rdb, cfg))
		}

		// Payment gateway callback (signed, unauthenticated)
		v1.POST("/gateway/callback", handlers.HandleGatewayWebhook(w))

		// Realtime session
		v1.GET("/ws", ws.HandleWebSocket(hub, cfg))

		// Wallet
		walletGroup := v1.Group("/wallet", middleware.UserAuth(cfg))
		{
			walletGroup.GET("/balance", handlers.GetBalance(w))
			walletGroup.GET("/ledger", handlers.GetLedger(w))
			walletGroup.POST("/deposit", handlers.InitiateDeposit(w, cfg))
			walletGroup.POST("/withdraw", handlers.RequestWithdrawal(w, cfg))
		}

		// Game reads
		gameGroup := v1.Group("/game", middleware.UserAuth(cfg))
		{
			gameGroup.GET("/queue/status", handlers.GetQueueStatus(st))
			gameGroup.GET("/:id", handlers.GetGameState(st))
		}

		// Admin
		adminGroup := v1.Group("/admin", handlers.AdminAuth(db))
		{
			adminGroup.GET("/rooms", handlers.AdminListRooms(db))
			adminGroup.POST("/rooms/:id/cancel", handlers.AdminCancelRoom(db))
			adminGroup.GET("/finance", handlers.AdminFinanceSummary(db))
			adminGroup.POST("/withdrawals/:id/complete", handlers.AdminCompleteWithdrawal(db, w))
			adminGroup.POST("/withdrawals/:id/fail", handlers.AdminFailWithdrawal(db, w))
		}
	}
}
