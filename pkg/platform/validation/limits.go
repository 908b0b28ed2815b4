// Package validation centralizes input bounds for the presence API. The
// client checks before sending and the simulator checks again on receipt,
// against the same constants.
package validation

import (
	"fmt"

	dErrors "vigil/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	// Sufficient for bulk offline payloads while preventing memory exhaustion.
	MaxBodySize = 64 * 1024
)

// Slice element count limits
const (
	// MaxBulkUsers is the maximum number of user ids per bulk offline request.
	MaxBulkUsers = 200
)

// String element length limits
const (
	// MaxUserIDLength is the maximum length of a user identifier.
	MaxUserIDLength = 100

	// MaxTenantIDLength is the maximum length of a tenant identifier.
	MaxTenantIDLength = 100
)

// Paging limits
const (
	// MaxPageLimit is the largest user page a single request may ask for.
	MaxPageLimit = 500

	// DefaultPageLimit applies when a list request carries no limit.
	DefaultPageLimit = 100
)

// CheckSliceCount rejects slices above max with a CodeValidation error
// naming the field.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength rejects values longer than max.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachStringLength applies CheckStringLength across a slice.
func CheckEachStringLength(fieldName string, values []string, max int) error {
	for _, v := range values {
		if len(v) > max {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
		}
	}
	return nil
}

// ClampPage normalizes limit and offset for user list requests.
// A zero or negative limit falls back to the default; anything above
// MaxPageLimit is capped. Negative offsets become zero.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
