package dto

import (
	"sort"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
)

// KeyResponse represents a key version in API responses. Only the label and
// lifecycle role are exposed; key material never leaves the process.
type KeyResponse struct {
	Label     uint64 `json:"label"`
	Algorithm string `json:"algorithm,omitempty"`
	Role      string `json:"role"`
}

// ListKeysResponse represents the registered key versions, ordered by label.
type ListKeysResponse struct {
	Data []KeyResponse `json:"data"`
}

// MapLabelsToListResponse converts the ring's label/role map to a list
// response sorted by label ascending.
func MapLabelsToListResponse(labels map[uint64]cryptoDomain.KeyRole) ListKeysResponse {
	data := make([]KeyResponse, 0, len(labels))
	for label, role := range labels {
		data = append(data, KeyResponse{
			Label: label,
			Role:  string(role),
		})
	}

	sort.Slice(data, func(i, j int) bool { return data[i].Label < data[j].Label })

	return ListKeysResponse{Data: data}
}
