package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"bad request", BadRequest("missing %s", "field"), KindBadRequest},
		{"unauthorized", Unauthorized("bad token"), KindUnauthorized},
		{"not found", NotFound("session %s", "abc"), KindNotFound},
		{"server error", ServerError(errors.New("boom"), "store write failed"), KindServerError},
		{"validation", Validation("ticket", "t1", "priority", errors.New("unknown")), KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.True(t, Is(tt.err, tt.kind))
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := ServerError(cause, "store write failed")
	require.ErrorIs(t, err, cause)
}

func TestKindOfDefaultsToServerError(t *testing.T) {
	assert.Equal(t, KindServerError, KindOf(errors.New("plain error")))
}
