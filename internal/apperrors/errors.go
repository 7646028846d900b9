// Package apperrors holds the error taxonomy shared by the storage, service
// and HTTP layers.
package apperrors

import (
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrValidation      = errors.New("validation failed")
)

// Error is a classified error carrying a machine readable code and a message
// that is safe to show to API clients.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NotFound returns an error that matches ErrNotFound.
func NotFound(code, message string) error {
	return &Error{Kind: ErrNotFound, Code: code, Message: message}
}

// Conflict returns an error that matches ErrConflict.
func Conflict(code, message string) error {
	return &Error{Kind: ErrConflict, Code: code, Message: message}
}

// FieldError reports an invalid value for a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Is(target error) bool { return target == ErrInvalidArgument }

// InvalidArgument returns a *FieldError matching ErrInvalidArgument.
func InvalidArgument(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// ValidationError collects every field violation found in one input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add records a violation for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }

// Details groups the messages by field name.
func (e *ValidationError) Details() map[string][]string {
	out := make(map[string][]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = append(out[f.Field], f.Message)
	}
	return out
}

// AsValidation converts an invalid argument into a ValidationError. Other
// errors are returned unchanged.
func AsValidation(err error) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		return &ValidationError{Fields: []FieldError{*fe}}
	}
	return err
}
