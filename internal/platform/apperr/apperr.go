// Package apperr defines the error kinds shared by every domain package.
// Domain sentinels wrap one of them so the HTTP layer can pick a status
// without knowing the domain.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
)

// New returns a sentinel that reports msg and matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Invalid wraps a formatted validation message as ErrInvalidInput.
func Invalid(format string, args ...interface{}) error {
	return &kindError{kind: ErrInvalidInput, msg: fmt.Sprintf(format, args...)}
}

// Status maps an error to its HTTP status code. Errors of no known kind
// are internal.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
