package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedErrors(t *testing.T) {
	nf := NotFound("ProjectNotFound", "Project not found.")
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.False(t, errors.Is(nf, ErrConflict))

	wrapped := fmt.Errorf("lookup: %w", Conflict("Conflict", "duplicate"))
	assert.True(t, errors.Is(wrapped, ErrConflict))

	var ae *Error
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, "Conflict", ae.Code)
	assert.Equal(t, "duplicate", ae.Message)
}

func TestFieldErrorMatchesInvalidArgument(t *testing.T) {
	err := fmt.Errorf("set name: %w", InvalidArgument("name", "project name is required"))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, "set name: name: project name is required", err.Error())
}

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	assert.False(t, v.HasErrors())

	v.Add("name", "name is required")
	v.Add("imageUrl", "imageUrl must be at most 1024 characters")
	v.Add("name", "second")

	assert.True(t, v.HasErrors())
	assert.True(t, errors.Is(v, ErrValidation))
	assert.Equal(t, map[string][]string{
		"name":     {"name is required", "second"},
		"imageUrl": {"imageUrl must be at most 1024 characters"},
	}, v.Details())
}

func TestAsValidation(t *testing.T) {
	converted := AsValidation(InvalidArgument("description", "too long"))

	var v *ValidationError
	require.True(t, errors.As(converted, &v))
	assert.Equal(t, []FieldError{{Field: "description", Message: "too long"}}, v.Fields)

	other := errors.New("boom")
	assert.Same(t, other, AsValidation(other))
}
