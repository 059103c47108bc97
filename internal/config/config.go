package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Matchmaking
	MatchmakerTickSeconds int
	MinEntryFee           float64
	MaxEntryFee           float64

	// Wallet
	MinDepositAmount    float64
	MaxDepositAmount    float64
	MinWithdrawalAmount float64
	PlatformFeeRate     float64

	// Game settings
	AutoStartSeconds      int
	MemoryTurnSeconds     int
	MemoryLifelines       int
	MemoryPairCount       int
	FastLudoTimer2P       int
	FastLudoTimer34P      int
	FinishedRoomGraceSecs int
	DisconnectGraceSecs   int

	// Payment gateway
	GatewayWebhookSecret string

	// OTP
	OTPTokenTTLSeconds         int
	OTPRequestRateLimitSeconds int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/playarena?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Matchmaking
		MatchmakerTickSeconds: getEnvInt("MATCHMAKER_TICK_SECONDS", 5),
		MinEntryFee:           getEnvFloat("MIN_ENTRY_FEE", 0),
		MaxEntryFee:           getEnvFloat("MAX_ENTRY_FEE", 10000),

		// Wallet
		MinDepositAmount:    getEnvFloat("MIN_DEPOSIT_AMOUNT", 10),
		MaxDepositAmount:    getEnvFloat("MAX_DEPOSIT_AMOUNT", 50000),
		MinWithdrawalAmount: getEnvFloat("MIN_WITHDRAWAL_AMOUNT", 100),
		PlatformFeeRate:     getEnvFloat("PLATFORM_FEE_RATE", 0.10),

		// Game settings
		AutoStartSeconds:      getEnvInt("AUTO_START_SECONDS", 5),
		MemoryTurnSeconds:     getEnvInt("MEMORY_TURN_SECONDS", 15),
		MemoryLifelines:       getEnvInt("MEMORY_LIFELINES", 3),
		MemoryPairCount:       getEnvInt("MEMORY_PAIR_COUNT", 15),
		FastLudoTimer2P:       getEnvInt("FAST_LUDO_TIMER_2P_SECONDS", 300),
		FastLudoTimer34P:      getEnvInt("FAST_LUDO_TIMER_34P_SECONDS", 600),
		FinishedRoomGraceSecs: getEnvInt("FINISHED_ROOM_GRACE_SECONDS", 60),
		DisconnectGraceSecs:   getEnvInt("DISCONNECT_GRACE_PERIOD_SECONDS", 60),

		// Payment gateway
		GatewayWebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),

		// OTP
		OTPTokenTTLSeconds:         getEnvInt("OTP_TOKEN_TTL_SECONDS", 300),
		OTPRequestRateLimitSeconds: getEnvInt("OTP_REQUEST_RATE_LIMIT_SECONDS", 60),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
