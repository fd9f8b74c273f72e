package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Sign computes the HMAC-SHA256 checksum over the fields as
// "k1=v1&k2=v2&..." with keys sorted alphabetically, hex-encoded.
// Both link requests and webhook payloads use this recipe.
func Sign(fields map[string]string, checksumKey string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, fields[k]))
	}
	data := strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks the payload's signature against the shared checksum
// key. Constant-time comparison; callers must reject before touching state.
func VerifyWebhook(p *WebhookPayload, checksumKey string) bool {
	expected := Sign(map[string]string{
		"amount":    fmt.Sprintf("%d", p.Amount),
		"orderCode": fmt.Sprintf("%d", p.OrderCode),
		"status":    p.Status,
	}, checksumKey)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(p.Signature)))
}
