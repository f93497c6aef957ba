// Package checksum provides content digests used for change detection and
// stable identifiers.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first 16 hex characters of the SHA-256 digest of s.
func Short(s string) string {
	return Sum([]byte(s))[:16]
}
