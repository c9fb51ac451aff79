// Package checksum fingerprints memo files for optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a checksum for use in an HTTP ETag header.
func ETag(sum string) string { return `"` + sum + `"` }

// FromIfMatch strips quotes and the weak prefix from an If-Match value.
// "*" and empty values yield "" (match anything).
func FromIfMatch(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v == "*" {
		return ""
	}
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}
