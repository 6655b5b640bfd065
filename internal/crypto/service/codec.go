package service

import (
	"fmt"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
)

// FieldCodec implements Codec on top of a KeyRing.
//
// It never logs plaintext or raw key bytes; errors carry only the version
// label and the failure kind.
type FieldCodec struct {
	ring *cryptoDomain.KeyRing
}

// NewFieldCodec creates a FieldCodec bound to the given key ring.
func NewFieldCodec(ring *cryptoDomain.KeyRing) *FieldCodec {
	return &FieldCodec{ring: ring}
}

// Encrypt encrypts plaintext under the write-current key version and returns
// the serialized v<label>:<nonce>:<ciphertext> value. A fresh random nonce is
// generated per call, so encrypting identical plaintext twice never produces
// identical output.
func (c *FieldCodec) Encrypt(plaintext []byte) (string, error) {
	kv, err := c.ring.ResolveForEncrypt()
	if err != nil {
		return "", err
	}
	return c.seal(kv, plaintext)
}

// EncryptWithVersion encrypts plaintext under an explicit key version. The
// rotation orchestrator uses it to pin a batch to the rotation target even if
// the write-current pointer moves mid-job (e.g. a rollback).
func (c *FieldCodec) EncryptWithVersion(label uint64, plaintext []byte) (string, error) {
	kv, err := c.ring.ResolveForDecrypt(label)
	if err != nil {
		return "", err
	}
	return c.seal(kv, plaintext)
}

// Decrypt parses the serialized value, resolves the key version embedded in it
// and verifies and decrypts the payload. The registry's write-current pointer
// plays no part here: the value's own label decides which key opens it.
func (c *FieldCodec) Decrypt(serialized string) ([]byte, error) {
	ev, err := cryptoDomain.ParseEncryptedValue(serialized)
	if err != nil {
		return nil, err
	}

	kv, err := c.ring.ResolveForDecrypt(ev.Version)
	if err != nil {
		return nil, err
	}

	aead, err := NewAEAD(kv.Key, kv.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("key version %d: %w", kv.Label, err)
	}

	plaintext, err := aead.Decrypt(ev.Ciphertext, ev.Nonce, nil)
	if err != nil {
		// Tag verification failed: tamper or corruption. Surface the version
		// label only, never the payload.
		return nil, fmt.Errorf("key version %d: %w", ev.Version, cryptoDomain.ErrIntegrity)
	}

	return plaintext, nil
}

func (c *FieldCodec) seal(kv *cryptoDomain.KeyVersion, plaintext []byte) (string, error) {
	aead, err := NewAEAD(kv.Key, kv.Algorithm)
	if err != nil {
		return "", fmt.Errorf("key version %d: %w", kv.Label, err)
	}

	ciphertext, nonce, err := aead.Encrypt(plaintext, nil)
	if err != nil {
		return "", fmt.Errorf("key version %d: encrypt: %w", kv.Label, err)
	}

	ev := cryptoDomain.EncryptedValue{
		Version:    kv.Label,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}
	return ev.String(), nil
}
