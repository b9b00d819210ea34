package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeakPasswordIsValidation(t *testing.T) {
	err := fmt.Errorf("create user: %w", &WeakPasswordError{Reasons: []string{"too short"}})

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "password", ve.Field)
	assert.Equal(t, "too short", ve.Message)

	var we *WeakPasswordError
	assert.True(t, errors.As(err, &we))
}

func TestPersistenceKeepsClassifiedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wrapped  bool
		sentinel error
	}{
		{name: "nil", err: nil},
		{name: "validation", err: Invalid("name", "required")},
		{name: "forbidden", err: fmt.Errorf("x: %w", ErrForbidden), sentinel: ErrForbidden},
		{name: "store failure", err: errors.New("connection reset"), wrapped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Persistence("op", tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			var pe *PersistenceError
			assert.Equal(t, tt.wrapped, errors.As(got, &pe))
			if tt.sentinel != nil {
				assert.ErrorIs(t, got, tt.sentinel)
			}
		})
	}
}
