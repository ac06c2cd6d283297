package storage

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "dementia-mcp/internal/errors"
)

func TestMapError(t *testing.T) {
	a := &Adapter{}

	assert.NoError(t, a.mapError(nil, "statement failed"))

	tests := []struct {
		name string
		code string
		kind engerr.Kind
	}{
		{"unique violation", "23505", engerr.KindVersionCollision},
		{"invalid schema", "3F000", engerr.KindProjectUnknown},
		{"undefined table", "42P01", engerr.KindProjectUnknown},
		{"query canceled", "57014", engerr.KindTransientIO},
		{"too many connections", "53300", engerr.KindTransientIO},
		{"syntax error", "42601", engerr.KindInternal},
		{"datatype mismatch", "42804", engerr.KindInternal},
		{"check violation", "23514", engerr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.mapError(&pq.Error{Code: pq.ErrorCode(tt.code)}, "statement failed")
			assert.True(t, engerr.IsKind(err, tt.kind))

			var ee *engerr.EngineError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.code, ee.Context["pg_code"])
		})
	}
}

func TestMapError_DeterministicFailuresNotRetryable(t *testing.T) {
	a := &Adapter{}

	err := a.mapError(&pq.Error{Code: "42601"}, "statement failed")
	assert.False(t, engerr.Retryable(err))

	err = a.mapError(&pq.Error{Code: "23505"}, "statement failed")
	assert.True(t, engerr.Retryable(err))
}
