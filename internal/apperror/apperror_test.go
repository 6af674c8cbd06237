package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"not found", NotFound("story", "abc"), ErrNotFound, true},
		{"forbidden", Forbidden("nope"), ErrForbidden, true},
		{"validation", Validation("title", "title is required"), ErrValidation, true},
		{"conflict", Conflict("user is already an admin"), ErrConflict, true},
		{"unauthenticated", Unauthenticated("missing token"), ErrUnauthenticated, true},
		{"invalid credential", InvalidCredential("bad token"), ErrInvalidCredential, true},
		{"not found is not forbidden", NotFound("story", "abc"), ErrForbidden, false},
		{"wrapped", fmt.Errorf("load: %w", NotFound("story", "abc")), ErrNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestMessageAndField(t *testing.T) {
	err := Validation("content", "content is required")
	assert.Equal(t, "content is required", err.Error())
	assert.Equal(t, "content", err.Field)

	assert.Equal(t, "story not found: s1", NotFound("story", "s1").Error())
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", NotFound("user", "u1"))))
}
