package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/playarena/backend/internal/api"
	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/database"
	"github.com/playarena/backend/internal/game"
	"github.com/playarena/backend/internal/migrations"
	"github.com/playarena/backend/internal/redis"
	"github.com/playarena/backend/internal/registry"
	"github.com/playarena/backend/internal/sms"
	"github.com/playarena/backend/internal/store"
	"github.com/playarena/backend/internal/wallet"
	"github.com/playarena/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Process-scoped services
	st := store.New(db)
	walletSvc := wallet.New(db, cfg.GatewayWebhookSecret)
	reg := registry.New()
	hub := ws.NewHub(reg, st, cfg)

	// Development SMS sender logs instead of delivering
	if cfg.Environment != "production" {
		sms.SetDefault(sms.LogSender{})
	}

	// Room manager rehydrates live rooms and starts registry cleanup
	game.InitializeManager(st, walletSvc, reg, hub, rdb, cfg)

	// Relay room events published by workers to local audiences
	ws.StartRoomEventSubscriber(context.Background(), rdb, hub)

	// Start matchmaker worker (pairs players from the DB queue)
	go game.StartMatchmakerWorker(context.Background())

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, db, rdb, st, walletSvc, hub, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting PlayArena server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
