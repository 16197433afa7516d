package domain

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// NonFieldErrors is the key used for failures that belong to no single request field.
const NonFieldErrors = "non_field_errors"

// FieldError attributes a failure to one request field, e.g. a duplicate email on sign-up.
// It unwraps to Err so callers can still match sentinels.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Unwrap() error { return e.Err }

// DuplicateField builds the sign-up conflict for field.
func DuplicateField(field string) *FieldError {
	return &FieldError{Field: field, Message: "already exists", Err: ErrConflict}
}

// ValidationErrors maps request fields to their messages.
type ValidationErrors map[string][]string

// Add appends msg to field.
func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v[f], ", "))
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error { return ErrBadRequest }
