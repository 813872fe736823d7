// Package serrors provides coded errors. A code is a stable, machine-readable
// identifier that survives wrapping and is safe to expose to API clients.
package serrors

import (
	"errors"
	"fmt"
)

type Base struct {
	Code    string
	Message string
	Hint    string
}

func NewError(code, message, hint string) *Base {
	return &Base{Code: code, Message: message, Hint: hint}
}

func (e *Base) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithMessage returns a copy carrying a more specific message under the same code.
func (e *Base) WithMessage(format string, args ...any) *Base {
	return &Base{Code: e.Code, Message: fmt.Sprintf(format, args...), Hint: e.Hint}
}

// Is matches by code so wrapped and re-messaged instances compare equal.
func (e *Base) Is(target error) bool {
	var other *Base
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// CodeOf extracts the code from err, or "" if err carries none.
func CodeOf(err error) string {
	var base *Base
	if errors.As(err, &base) {
		return base.Code
	}
	return ""
}
