package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/playarena/backend/internal/auth"
	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/sms"
	"github.com/redis/go-redis/v9"
)

// RequestOTP handles OTP generation and SMS sending
func RequestOTP(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Phone string `json:"phone"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "phone required"})
			return
		}

		phone := strings.TrimSpace(req.Phone)
		if phone == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "phone required"})
			return
		}

		ctx := context.Background()
		// Rate limit per phone
		if rdb != nil && cfg.OTPRequestRateLimitSeconds > 0 {
			key := fmt.Sprintf("otp_rate:%s", phone)
			ok, err := rdb.SetNX(ctx, key, "1", time.Duration(cfg.OTPRequestRateLimitSeconds)*time.Second).Result()
			if err == nil && !ok {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "OTP rate limit exceeded"})
				return
			}
		}

		// generate 4-digit OTP
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			log.Printf("Failed to generate OTP: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		code := fmt.Sprintf("%04d", n.Int64())

		// hash and store in Redis
		h := sha256.Sum256([]byte(code))
		hash := hex.EncodeToString(h[:])
		if rdb != nil {
			rdb.Set(ctx, fmt.Sprintf("otp:%s", phone), hash, time.Duration(cfg.OTPTokenTTLSeconds)*time.Second)
		}

		msg := fmt.Sprintf("Your PlayArena OTP is %s. It expires in %d minutes.", code, cfg.OTPTokenTTLSeconds/60)
		if err := sms.Send(ctx, phone, msg); err != nil {
			log.Printf("Failed to send OTP SMS to %s: %v", phone, err)
			// best-effort: the code is stored, the client may retry delivery
		}

		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	}
}

// VerifyOTP validates the code, creates the user on first verification and
// issues a session token.
func VerifyOTP(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Phone string `json:"phone"`
			Code  string `json:"code"`
			Name  string `json:"name"`
		}
		if err := c.BindJSON(&req); err != nil || req.Phone == "" || req.Code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "phone and code required"})
			return
		}

		if rdb == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification unavailable"})
			return
		}

		ctx := context.Background()
		stored, err := rdb.Get(ctx, fmt.Sprintf("otp:%s", req.Phone)).Result()
		if err == redis.Nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "OTP expired or not requested"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		h := sha256.Sum256([]byte(req.Code))
		given := hex.EncodeToString(h[:])
		if subtle.ConstantTimeCompare([]byte(stored), []byte(given)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid OTP"})
			return
		}
		rdb.Del(ctx, fmt.Sprintf("otp:%s", req.Phone))

		// Create the user on first successful verification.
		var userID string
		err = db.Get(&userID, `SELECT id FROM users WHERE phone=$1`, req.Phone)
		if err == sql.ErrNoRows {
			userID = uuid.NewString()
			name := req.Name
			if name == "" {
				name = "Player " + userID[:8]
			}
			if _, err := db.Exec(`INSERT INTO users (id, phone, name, verified, created_at) VALUES ($1,$2,$3,TRUE,NOW())`,
				userID, req.Phone, name); err != nil {
				log.Printf("Failed to create user for %s: %v", req.Phone, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if _, err := db.Exec(`INSERT INTO wallets (user_id, balance) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
				log.Printf("Failed to create wallet for %s: %v", userID, err)
			}
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		} else {
			if _, err := db.Exec(`UPDATE users SET verified=TRUE WHERE id=$1`, userID); err != nil {
				log.Printf("Failed to mark user %s verified: %v", userID, err)
			}
		}

		token, err := auth.IssueToken(userID, cfg.JWTSecret, time.Duration(cfg.SessionTimeoutMin)*time.Minute)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token, "userId": userID})
	}
}
