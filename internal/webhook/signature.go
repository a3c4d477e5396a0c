package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// computeSignature returns the hex HMAC-SHA256 of the payload re-encoded
// with its top-level keys sorted. The payment provider signs the body that
// way, so verification has to canonicalize before hashing rather than use
// the raw bytes.
func computeSignature(body []byte, secret string) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("webhook: decode payload: %w", err)
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("webhook: canonicalize payload: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func verifySignature(body []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}
	want, err := computeSignature(body, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(signature))
}
