package domain

import (
	"github.com/medvault/phivault/internal/errors"
)

var (
	// ErrLeaseConflict indicates another runner currently holds the job's
	// lease. Distinct from the duplicate-active-job conflict raised at start.
	ErrLeaseConflict = errors.Wrap(errors.ErrConflict, "rotation job lease held")
)
