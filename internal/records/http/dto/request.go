// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/medvault/phivault/internal/validation"
)

// CreateRecordRequest contains the parameters for creating a patient record.
// The field value carries the plaintext base64-encoded so binary values
// survive JSON transport.
type CreateRecordRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Value     string `json:"value" binding:"required"`
}

// Validate checks if the create record request is valid.
func (r *CreateRecordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PatientID,
			validation.Required,
		),
		validation.Field(&r.Name,
			validation.Required,
			validation.Length(1, 255),
			customValidation.NotBlank,
			customValidation.NoWhitespace,
		),
		validation.Field(&r.Value,
			validation.Required,
			customValidation.Base64,
		),
	)
}
