package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the platform's HMAC over the raw webhook body.
const SignatureHeader = "X-Platform-Hmac-Sha256"

// VerifyWebhookSignature checks the base64-encoded HMAC-SHA256 signature
// against the raw request body. Comparison is constant time.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
