package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash256 returns the raw SHA-256 digest of v's canonical encoding.
func Hash256(v Value) [32]byte {
	return sha256.Sum256(Encode(v))
}

// HashHex returns the lowercase hex-encoded SHA-256 digest of v's canonical
// encoding, the form every hash field in the data model is stored as.
func HashHex(v Value) string {
	h := Hash256(v)
	return hex.EncodeToString(h[:])
}

// ZeroHash is the all-zero 64 hex-char hash used on the genesis block's
// prev_hash, state_hash, and combined_hash fields.
var ZeroHash = strings.Repeat("0", 64)
