// Package webhook delivers signed event notifications to registered
// subscribers. Each delivery carries an HMAC signature the receiver can
// verify against the secret issued at registration.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign computes the delivery signature: lowercase hex of
// HMAC-SHA256(secret, "{webhookID}.{timestamp}.{body}"). The timestamp is
// unix epoch milliseconds, so a signature is unique per delivery attempt even
// for identical bodies.
func Sign(webhookID, secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%d.", webhookID, timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid signature for the delivery.
// Comparison is constant time.
func Verify(webhookID, secret string, timestamp int64, body []byte, sig string) bool {
	expected := Sign(webhookID, secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(sig))
}
