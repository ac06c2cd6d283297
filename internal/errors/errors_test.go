package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineError_Error(t *testing.T) {
	err := New(KindNotFound, "topic missing")
	assert.Equal(t, "not_found: topic missing", err.Error())

	wrapped := Wrap(KindTransientIO, "statement failed", errors.New("broken pipe"))
	assert.Equal(t, "transient_io: statement failed: broken pipe", wrapped.Error())
}

func TestWrap_NilCause(t *testing.T) {
	assert.Nil(t, Wrap(KindTransientIO, "x", nil))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad arg"), KindValidation},
		{"wrapped in fmt", fmt.Errorf("outer: %w", ProjectNotSelected()), KindProjectNotSelected},
		{"plain error", errors.New("boom"), KindInternal},
		{"collision", New(KindVersionCollision, "race"), KindVersionCollision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestAs(t *testing.T) {
	assert.Nil(t, As(nil))

	ee := As(errors.New("plain"))
	assert.Equal(t, KindInternal, ee.Kind)

	orig := NotFound("gone")
	assert.Same(t, orig, As(orig))
	assert.Same(t, orig, As(fmt.Errorf("wrap: %w", orig)))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindVersionCollision, "race")))
	assert.False(t, Retryable(TransientIO("timeout", errors.New("deadline"))))
	assert.False(t, Retryable(Validation("bad")))
}

func TestWithContext(t *testing.T) {
	err := ProjectUnknown("alpha_1")
	assert.Equal(t, "alpha_1", err.Context["project"])

	err.WithContext("schema", "dementia_alpha_1")
	assert.Equal(t, "dementia_alpha_1", err.Context["schema"])
}
