package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is a hex-encoded SHA-256 digest of raw script content.
// Identical bytes always produce the same fingerprint across runs and
// across implementations in other languages.
type Fingerprint string

// HexLen is the length of the hex form of a fingerprint.
const HexLen = sha256.Size * 2

// Compute returns the fingerprint of content. It never fails; empty
// content gets the well-known digest of the empty string.
func Compute(content []byte) Fingerprint {
	sum := sha256.Sum256(content)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Valid reports whether f looks like a fingerprint produced by Compute.
func (f Fingerprint) Valid() bool {
	if len(f) != HexLen {
		return false
	}
	_, err := hex.DecodeString(string(f))
	return err == nil
}

func (f Fingerprint) String() string { return string(f) }
