package storage

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// ContentHash returns the hex-encoded BLAKE3 hash of data, adapted from the
// teacher's per-chunk manifest hashing (internal/chunker). IndexedBackend
// records it in the side-index on every save; no load path compares a loaded
// chunk against the recorded hash.
func ContentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
