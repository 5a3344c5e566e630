// Package errors defines the error taxonomy shared by the preprocessing
// pipeline, the index store and the services built on them.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNotFound            = errors.New("not found")
	ErrMalformedJSON       = errors.New("malformed json")
	ErrPostingsMismatch    = errors.New("postings and frequencies do not correspond")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInternal            = errors.New("internal error")
)

// Exit codes returned by the command-line tools.
const (
	ExitOK          = 0
	ExitInternal    = 1
	ExitUsage       = 2
	ExitUnsupported = 3
	ExitNotFound    = 4
	ExitMalformed   = 5
)

// UnsupportedLanguageError reports a language outside the supported set.
// It carries the full set so callers can show the valid choices.
type UnsupportedLanguageError struct {
	Requested string
	Supported []string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("language %q is not supported; the language should be one of the following: [%s]",
		e.Requested, strings.Join(e.Supported, ", "))
}

func (e *UnsupportedLanguageError) Unwrap() error {
	return ErrUnsupportedLanguage
}

// UnsupportedLanguage builds an UnsupportedLanguageError, copying supported.
func UnsupportedLanguage(requested string, supported []string) *UnsupportedLanguageError {
	s := make([]string, len(supported))
	copy(s, supported)
	return &UnsupportedLanguageError{Requested: requested, Supported: s}
}

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExitCode maps an error to the process exit code used by the CLIs.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, ErrUnsupportedLanguage):
		return ExitUnsupported
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrMalformedJSON):
		return ExitMalformed
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPostingsMismatch):
		return ExitUsage
	default:
		return ExitInternal
	}
}
