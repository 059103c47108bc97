package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/playarena/backend/internal/admin"
	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/database"
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

	// Seed admin account
	phone := os.Getenv("ADMIN_PHONE")
	if phone == "" {
		phone = "910000000000"
		log.Printf("Using default admin phone: %s", phone)
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "change-me-in-production"
		log.Printf("WARNING: Using default admin token. Set ADMIN_TOKEN env var in production!")
	}

	if err := admin.CreateAdminAccount(db, phone, "Admin", adminToken); err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}

	log.Printf("Admin account seeded for %s", phone)
}
