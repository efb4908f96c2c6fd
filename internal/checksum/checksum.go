// Package checksum provides the content digests used for identifiers,
// image paths and backup integrity.
package checksum

import (
	"crypto/sha1" //nolint:gosec // identifiers only, not a security boundary
	"crypto/sha256"
	"encoding/hex"
)

// IDLength is the number of hex characters kept for content identifiers.
const IDLength = 12

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ShortID returns the first IDLength hex characters of the SHA-1 digest of s.
func ShortID(s string) string {
	h := sha1.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(h[:])[:IDLength]
}
