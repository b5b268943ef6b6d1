package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the checkout signature the gateway attaches to a successful
// payment: hex(HMAC-SHA256(secret, order_id + "|" + payment_id)).
func Sign(providerOrderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(providerOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(providerOrderID, paymentID, signature, secret string) bool {
	sig := strings.TrimSpace(signature)
	if sig == "" || secret == "" || providerOrderID == "" || paymentID == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(providerOrderID, paymentID, secret))
	return hmac.Equal(got, want)
}
