// Package service provides the field adapter that sits between record
// persistence and the field codec. Callers on the read side receive plaintext
// and never see serialized ciphertext; callers on the write side hand over
// plaintext and never see key material.
package service

import (
	"fmt"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
)

// FieldAdapter transparently encrypts protected field values on write and
// decrypts them on read.
type FieldAdapter struct {
	codec cryptoService.Codec
}

// NewFieldAdapter creates a FieldAdapter on top of the given codec.
func NewFieldAdapter(codec cryptoService.Codec) *FieldAdapter {
	return &FieldAdapter{codec: codec}
}

// EncryptOnWrite encrypts a plaintext field value under the write-current key
// version and returns the serialized form for storage.
func (a *FieldAdapter) EncryptOnWrite(plaintext string) (string, error) {
	serialized, err := a.codec.Encrypt([]byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encrypt field: %w", err)
	}
	return serialized, nil
}

// DecryptOnRead decrypts a stored field value using the key version embedded
// in it. Every failure surfaces as ErrDecryptionFailed with the underlying
// cause wrapped; the stored value itself is never included in the error.
func (a *FieldAdapter) DecryptOnRead(serialized string) (string, error) {
	plaintext, err := a.codec.Decrypt(serialized)
	if err != nil {
		return "", fmt.Errorf("%w: %w", cryptoDomain.ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
