// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"
)

// StartRotationRequest contains the parameters for starting a rotation job.
type StartRotationRequest struct {
	SourceVersion uint64 `json:"source_version" binding:"required"`
	TargetVersion uint64 `json:"target_version" binding:"required"`
}

// Validate checks if the start rotation request is valid. Source and target
// being distinct, registered versions is enforced by the use case.
func (r *StartRotationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SourceVersion,
			validation.Required,
			validation.Min(uint64(1)),
		),
		validation.Field(&r.TargetVersion,
			validation.Required,
			validation.Min(uint64(1)),
		),
	)
}
