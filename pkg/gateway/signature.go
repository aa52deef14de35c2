package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// paymentSignature computes HMAC-SHA256(secret, orderID + "|" + paymentID),
// hex encoded. The "|" separator is part of the wire contract.
func paymentSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// webhookSignature computes HMAC-SHA256(secret, rawBody), hex encoded. The
// body must be the raw delivered bytes, not a re-serialization.
func webhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verify compares in constant time. Malformed input yields false, never an
// error: a tampered or garbage signature is just an invalid one.
func verify(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}
