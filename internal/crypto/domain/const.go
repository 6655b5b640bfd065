package domain

// Algorithm represents the cryptographic algorithm used for field encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated Data
// (AEAD), ensuring both confidentiality and authenticity of encrypted fields.
// The algorithm is a property of a key version, not of the wire format: a
// ciphertext's version label resolves to a key version that carries both the
// key bytes and the algorithm to open it with.
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// Uses a 256-bit key, a 12-byte (96-bit) nonce and a 16-byte (128-bit)
	// authentication tag. Hardware-accelerated on most modern CPUs.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	//
	// Uses a 256-bit key, a 12-byte nonce and a 16-byte tag. Constant-time in
	// software, preferred on platforms without AES hardware acceleration.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// KeyRole represents the lifecycle role of a key version.
//
// Exactly one key version holds RoleWriteCurrent at any time. Retirement is
// one-way: a retired key version never returns to service.
type KeyRole string

const (
	// RoleWriteCurrent marks the single key version used to encrypt new writes.
	RoleWriteCurrent KeyRole = "write-current"

	// RoleReadOnly marks a key version kept registered to decrypt existing
	// ciphertext. Read-only keys never encrypt new data.
	RoleReadOnly KeyRole = "read-only"

	// RoleRetired marks a key version with zero remaining ciphertext rows.
	// Retired keys may still decrypt until purged.
	RoleRetired KeyRole = "retired"
)

const (
	// KeySize is the required key length in bytes (256 bits).
	KeySize = 32

	// NonceSize is the AEAD nonce length in bytes (96 bits).
	NonceSize = 12

	// TagSize is the AEAD authentication tag length in bytes (128 bits).
	TagSize = 16
)
