package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignatureEncoding selects how a gateway encodes its HMAC digest.
type SignatureEncoding int

const (
	EncodingHex SignatureEncoding = iota
	EncodingBase64
)

// VerifyHMAC checks an HMAC-SHA256 digest of the raw request body
// against the header value. A missing secret fails closed: absence of a
// secret is a misconfiguration, not an allow-all condition. Malformed
// headers return false, never an error.
func VerifyHMAC(body []byte, header, secret string, enc SignatureEncoding) bool {
	if secret == "" || header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sum := mac.Sum(nil)

	var expected string
	switch enc {
	case EncodingBase64:
		expected = base64.StdEncoding.EncodeToString(sum)
	default:
		expected = hex.EncodeToString(sum)
	}

	// Some processors prefix the digest with the algorithm name.
	got := strings.TrimPrefix(header, "sha256=")

	return hmac.Equal([]byte(expected), []byte(got))
}
