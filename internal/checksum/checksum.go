// Package checksum provides the digests used for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the hex-encoded SHA-256 digest of data. Used to fingerprint
// files on disk.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Content returns the hex-encoded xxhash64 digest of text. The embedding
// cache compares it to decide whether an entry needs a new vector.
func Content(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}
