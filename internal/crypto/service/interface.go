// Package service provides the cryptographic services for PHI field encryption:
// AEAD ciphers (AES-256-GCM, ChaCha20-Poly1305), the field codec that owns the
// versioned wire format, and key suppliers that load key material from the
// environment or a KMS keeper.
package service

import (
	"context"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// Codec performs authenticated field encryption and owns the serialized wire
// format. Encryption always uses the ring's write-current version; decryption
// always uses the version label embedded in the value itself.
type Codec interface {
	// Encrypt encrypts plaintext under the write-current key version and
	// returns the serialized encrypted value.
	Encrypt(plaintext []byte) (string, error)

	// EncryptWithVersion encrypts plaintext under an explicit key version.
	// Used by the rotation orchestrator to pin the target version of a batch.
	EncryptWithVersion(label uint64, plaintext []byte) (string, error)

	// Decrypt parses a serialized value, resolves the embedded key version and
	// returns the plaintext. Fails with domain.ErrIntegrity on tag verification
	// failure and domain.ErrUnknownVersion on an unregistered label.
	Decrypt(serialized string) ([]byte, error)
}

// KeySupplier is the external key-supply interface (secrets store, KMS, env).
// The key registry consumes it at startup and at rotation start. Key custody
// is out of scope: implementations only hand over raw 32-byte keys by label.
type KeySupplier interface {
	// GetKey returns the raw key bytes for a version label.
	GetKey(ctx context.Context, label uint64) ([]byte, error)

	// ListVersions returns all version labels the supplier can provide.
	ListVersions(ctx context.Context) ([]uint64, error)
}

// NewAEAD creates an AEAD cipher instance for the given key and algorithm.
// Returns domain.ErrInvalidKeySize for keys that are not 32 bytes and
// domain.ErrUnsupportedAlgorithm for unknown algorithms.
func NewAEAD(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	switch alg {
	case cryptoDomain.AESGCM:
		return NewAESGCM(key)
	case cryptoDomain.ChaCha20:
		return NewChaCha20Poly1305(key)
	default:
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
}
