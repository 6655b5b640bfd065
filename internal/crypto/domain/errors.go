package domain

import (
	"github.com/medvault/phivault/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors to
// provide context for cryptographic failures. The read path must surface all
// of them as hard failures: a decryption failure is never coerced to an empty
// value, since that would hide potential PHI corruption or tampering.
var (
	// ErrInvalidKeySize indicates a key is not exactly 32 bytes (256 bits).
	ErrInvalidKeySize = errors.Wrap(errors.ErrConfiguration, "invalid key size")

	// ErrWeakKey indicates a key failed strength validation (all-zero bytes or
	// distinct-byte ratio below the configured threshold). This is a defense
	// against misconfiguration, not a cryptographic proof of quality.
	ErrWeakKey = errors.Wrap(errors.ErrConfiguration, "weak key material")

	// ErrUnknownVersion indicates a ciphertext references a version label that
	// is not registered (or was retired and purged). Fatal to that read.
	ErrUnknownVersion = errors.Wrap(errors.ErrNotFound, "unknown key version")

	// ErrKeyRetired indicates an operation attempted to use a retired key
	// version for encryption or promotion.
	ErrKeyRetired = errors.Wrap(errors.ErrInvalidState, "key version is retired")

	// ErrDuplicateVersion indicates a key version label is already registered.
	ErrDuplicateVersion = errors.Wrap(errors.ErrConflict, "duplicate key version")

	// ErrIntegrity indicates AEAD tag verification failed. The ciphertext was
	// tampered with or corrupted. Fatal to that read; logged with row/field
	// identifiers only, never content.
	ErrIntegrity = errors.Wrap(errors.ErrInvalidInput, "integrity check failed")

	// ErrMalformedValue indicates a serialized value does not match the
	// v<label>:<nonce>:<ciphertext> wire format.
	ErrMalformedValue = errors.Wrap(errors.ErrInvalidInput, "malformed encrypted value")

	// ErrDecryptionFailed indicates a field could not be decrypted. Callers
	// must treat this as a hard failure and never substitute an empty value.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrNoWriteKey indicates the ring has no write-current key version.
	ErrNoWriteKey = errors.Wrap(errors.ErrInvalidState, "no write-current key version")

	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is
	// not supported. Supported: AESGCM, ChaCha20.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")
)
