// Package apperr defines the error taxonomy shared by services and the HTTP
// layer. Services return these types; handlers translate them to status codes
// in one place.
package apperr

import (
	"errors"
	"fmt"
	"sort"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is a client-facing failure with a message safe to return as is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Message: msg} }

// ValidationError carries per-field messages.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

// Validation builds a ValidationError from a field map. The message is the
// first field message in key order, with a count of the remaining ones.
func Validation(fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msg := "Validation failed"
	if len(keys) > 0 {
		msg = fields[keys[0]]
	}
	if len(keys) > 1 {
		msg = fmt.Sprintf("%s (and %d more error(s))", msg, len(keys)-1)
	}
	return &ValidationError{Message: msg, Fields: fields}
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) error {
	return &ValidationError{Message: msg, Fields: map[string]string{field: msg}}
}

// LimitExceededError is a Forbidden condition raised when a free-tier cap is
// reached. Current and Limit are reported to the client.
type LimitExceededError struct {
	Module  string
	Current int64
	Limit   int
	Message string
}

func (e *LimitExceededError) Error() string {
	return e.Message
}

func NewRoleLimitExceeded(current int64, limit int) *LimitExceededError {
	return &LimitExceededError{
		Module:  "roles",
		Current: current,
		Limit:   limit,
		Message: "Roles limit reached. Please upgrade your subscription.",
	}
}

func NewUserLimitExceeded(current int64, limit int) *LimitExceededError {
	return &LimitExceededError{
		Module:  "personnel",
		Current: current,
		Limit:   limit,
		Message: "Users limit reached. Please upgrade your subscription.",
	}
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindInternal, false
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsLimitExceeded(err error) bool {
	var l *LimitExceededError
	return errors.As(err, &l)
}

// IsForbidden also reports true for limit-exceeded errors.
func IsForbidden(err error) bool {
	if IsLimitExceeded(err) {
		return true
	}
	k, ok := kindOf(err)
	return ok && k == KindForbidden
}

func IsUnauthorized(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindUnauthorized
}

func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

func IsConflict(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConflict
}
