package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature checks a Square webhook signature: the base64-encoded
// HMAC-SHA256 of the notification URL concatenated with the raw request body,
// keyed by the shared signature secret. The comparison is constant-time.
func VerifySignature(signature, notificationURL string, body []byte, key string) bool {
	if signature == "" || key == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
