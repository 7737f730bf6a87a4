package prompt

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the lowercase hex SHA-256 digest of the value's UTF-8
// bytes. The same bytes always produce the same digest, so stored digests
// can be compared to detect exact-duplicate content.
func Digest(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}
