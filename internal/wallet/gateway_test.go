package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test-secret"

	assert.True(t, VerifySignature(secret, "order_1", "pay_1", sign(secret, "order_1", "pay_1")))
	assert.False(t, VerifySignature(secret, "order_1", "pay_1", sign(secret, "order_1", "pay_2")))
	assert.False(t, VerifySignature(secret, "order_1", "pay_1", sign("other-secret", "order_1", "pay_1")))
	assert.False(t, VerifySignature(secret, "order_1", "pay_1", ""))
	assert.False(t, VerifySignature("", "order_1", "pay_1", sign("", "order_1", "pay_1")))
}

func TestVerifySignatureTamperedOrder(t *testing.T) {
	secret := "test-secret"
	sig := sign(secret, "order_1", "pay_1")
	assert.False(t, VerifySignature(secret, "order_2", "pay_1", sig))
}
