package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "vigil/pkg/domain-errors"
)

func TestCheckSliceCount(t *testing.T) {
	assert.NoError(t, CheckSliceCount("user_ids", MaxBulkUsers, MaxBulkUsers))

	err := CheckSliceCount("user_ids", MaxBulkUsers+1, MaxBulkUsers)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCheckStringLength(t *testing.T) {
	assert.NoError(t, CheckStringLength("tenant_id", "acme", MaxTenantIDLength))

	long := make([]byte, MaxUserIDLength+1)
	for i := range long {
		long[i] = 'a'
	}
	err := CheckStringLength("user_id", string(long), MaxUserIDLength)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"defaults applied", 0, 0, DefaultPageLimit, 0},
		{"negative limit", -5, 3, DefaultPageLimit, 3},
		{"capped limit", MaxPageLimit + 100, 0, MaxPageLimit, 0},
		{"negative offset", 50, -1, 50, 0},
		{"passthrough", 25, 10, 25, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := ClampPage(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
