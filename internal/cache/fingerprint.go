package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// unitSeparator matches the ASCII 0x1F unit-separator control byte used to
// join provider name and entity id before hashing, guaranteeing that
// providers named "a:b" and ids containing ":" can never collide with a
// different (provider, id) pair.
const unitSeparator = byte(0x1F)

// Fingerprint identifies a cached record independent of which field subset
// was requested; the cache always stores the full record for a given
// (provider, id) pair.
type Fingerprint string

// NewFingerprint hashes provider||0x1F||id into a stable, fixed-length key.
func NewFingerprint(provider, id string) Fingerprint {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{unitSeparator})
	h.Write([]byte(id))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
