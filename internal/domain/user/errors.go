package user

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidUserID = errors.New("invalid user id")
	ErrEmptyRequest  = errors.New("request body is required")
)

// ValidationError carries field-level messages keyed by JSON field name
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a message against field
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// Merge copies every message from fields into e
func (e *ValidationError) Merge(fields map[string][]string) {
	for field, messages := range fields {
		for _, m := range messages {
			e.Add(field, m)
		}
	}
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}
