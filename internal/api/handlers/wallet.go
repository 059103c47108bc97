package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/wallet"
)

// GetBalance returns the authenticated user's balance.
func GetBalance(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		balance, err := w.Balance(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	}
}

// GetLedger returns the authenticated user's recent ledger entries.
func GetLedger(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		entries, err := w.History(c.Request.Context(), userID, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

// InitiateDeposit reserves a pending deposit and hands back its id for the
// gateway order.
func InitiateDeposit(w *wallet.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		var req struct {
			Amount float64 `json:"amount"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount required"})
			return
		}
		if req.Amount < cfg.MinDepositAmount || req.Amount > cfg.MaxDepositAmount {
			c.JSON(http.StatusBadRequest, gin.H{"error": "deposit amount out of range"})
			return
		}

		pendingID, err := w.ReserveDeposit(c.Request.Context(), userID, req.Amount)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pendingId": pendingID})
	}
}

// HandleGatewayWebhook confirms a deposit on the gateway callback. The
// signature must be HMAC-SHA256 over "orderId|paymentId".
func HandleGatewayWebhook(w *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PendingID string `json:"pendingId"`
			OrderID   string `json:"orderId"`
			PaymentID string `json:"paymentId"`
			Signature string `json:"signature"`
		}
		if err := c.BindJSON(&req); err != nil || req.PendingID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
			return
		}

		newBalance, err := w.ConfirmDeposit(c.Request.Context(), req.PendingID, req.OrderID, req.PaymentID, req.Signature)
		switch {
		case errors.Is(err, wallet.ErrSignatureInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature invalid"})
		case errors.Is(err, wallet.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown deposit"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		default:
			c.JSON(http.StatusOK, gin.H{"balance": newBalance})
		}
	}
}

// RequestWithdrawal places a hold and creates the pending payout.
func RequestWithdrawal(w *wallet.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		var req struct {
			Amount      float64 `json:"amount"`
			BankDetails string  `json:"bankDetails"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount required"})
			return
		}
		if req.Amount < cfg.MinWithdrawalAmount {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount below minimum withdrawal"})
			return
		}

		pendingID, err := w.RequestWithdrawal(c.Request.Context(), userID, req.Amount, req.BankDetails)
		switch {
		case errors.Is(err, wallet.ErrInsufficientBalance):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient balance"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		default:
			c.JSON(http.StatusOK, gin.H{"pendingId": pendingID})
		}
	}
}
