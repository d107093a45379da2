package store

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies one version of the task file. Only equality is
// meaningful.
type Fingerprint string

// FingerprintOf digests raw task file bytes.
func FingerprintOf(content []byte) Fingerprint {
	sum := blake2b.Sum256(content)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Short returns an abbreviated form for logs.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}
