package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const SignatureHeader = "X-Square-Hmacsha256-Signature"

// VerifySignature checks a webhook signature: base64 of HMAC-SHA256 over the
// notification URL followed by the raw body.
func VerifySignature(body []byte, signature, notificationURL, key string) bool {
	sig := strings.TrimSpace(signature)
	if sig == "" || key == "" {
		return false
	}

	expected, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(digest(body, notificationURL, key), expected)
}

// Sign returns the signature Square sends along with body.
func Sign(body []byte, notificationURL, key string) string {
	return base64.StdEncoding.EncodeToString(digest(body, notificationURL, key))
}

func digest(body []byte, notificationURL, key string) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return mac.Sum(nil)
}
