// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
)

// CreateKeyRequest contains the parameters for registering a new key version.
// The key material itself never travels over the API; it must already be
// available to the configured key supplier under the given label.
type CreateKeyRequest struct {
	Label     uint64 `json:"label" binding:"required"`
	Algorithm string `json:"algorithm" binding:"required"`
}

// Validate checks if the create key request is valid.
func (r *CreateKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Label,
			validation.Required,
			validation.Min(uint64(1)),
		),
		validation.Field(&r.Algorithm,
			validation.Required,
			validation.In(
				string(cryptoDomain.AESGCM),
				string(cryptoDomain.ChaCha20),
			),
		),
	)
}
