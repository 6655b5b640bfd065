// Package domain defines the core cryptographic domain models for field
// encryption with versioned keys.
//
// Every encrypted field embeds the numeric label of the key version that
// produced it, so reads always resolve the key that actually encrypted a value
// while new writes use whichever version currently holds the write-current
// role. That separation is what lets old and new ciphertext coexist during a
// live key rotation.
package domain

import (
	"fmt"
	"time"
)

// KeyVersion represents one versioned field-encryption key.
type KeyVersion struct {
	Label       uint64    // Numeric version label embedded in ciphertext (v<label>:...)
	Algorithm   Algorithm // AEAD algorithm this key is used with
	Key         []byte    // Raw 32-byte key material, never persisted or logged
	Role        KeyRole   // write-current, read-only or retired
	ActivatedAt time.Time // When this version became write-current
}

// ValidateKeyStrength rejects key material that is obviously misconfigured:
// wrong length, all zeros, or too few distinct byte values. minDistinctRatio
// is the minimum fraction of distinct bytes (e.g. 0.25 requires 8 distinct
// values in a 32-byte key). This is a sanity check against placeholder or
// truncated keys, not an entropy measurement.
func ValidateKeyStrength(key []byte, minDistinctRatio float64) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(key), KeySize)
	}

	seen := make(map[byte]struct{}, len(key))
	allZero := true
	for _, b := range key {
		if b != 0 {
			allZero = false
		}
		seen[b] = struct{}{}
	}
	if allZero {
		return fmt.Errorf("%w: all-zero key", ErrWeakKey)
	}

	ratio := float64(len(seen)) / float64(len(key))
	if ratio < minDistinctRatio {
		return fmt.Errorf(
			"%w: distinct-byte ratio %.2f below threshold %.2f",
			ErrWeakKey,
			ratio,
			minDistinctRatio,
		)
	}

	return nil
}
