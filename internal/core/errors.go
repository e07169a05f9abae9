package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failures a query can end in.
type ErrorKind string

const (
	KindParse             ErrorKind = "ParseError"
	KindValidation        ErrorKind = "ValidationError"
	KindArchiveWrite      ErrorKind = "ArchiveWriteViolation"
	KindAmbiguousIntent   ErrorKind = "AmbiguousIntent"
	KindFallbackTimeout   ErrorKind = "FallbackTimeout"
	KindFallbackMalformed ErrorKind = "FallbackMalformedResponse"
	KindInternal          ErrorKind = "InternalError"
)

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrParse             = &Error{Kind: KindParse}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrArchiveWrite      = &Error{Kind: KindArchiveWrite}
	ErrAmbiguousIntent   = &Error{Kind: KindAmbiguousIntent}
	ErrFallbackTimeout   = &Error{Kind: KindFallbackTimeout}
	ErrFallbackMalformed = &Error{Kind: KindFallbackMalformed}
	ErrInternal          = &Error{Kind: KindInternal}
)

// Error carries the kind, the offending token when there is one, and a
// short reason fit for showing to the user.
type Error struct {
	Kind   ErrorKind
	Token  string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Token != "" {
		msg += fmt.Sprintf(" %q", e.Token)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an error of the given kind.
func NewError(kind ErrorKind, token, reason string) *Error {
	return &Error{Kind: kind, Token: token, Reason: reason}
}

// WrapError attaches a cause.
func WrapError(kind ErrorKind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// AsError converts any error to the taxonomy; unknown errors become internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapError(KindInternal, "", err)
}

// ValidationFromErr maps record validation failures to a ValidationError
// with a user-facing reason.
func ValidationFromErr(err error) *Error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return NewError(KindValidation, "", "amount must be greater than zero")
	case errors.Is(err, ErrAmountTooLarge):
		return NewError(KindValidation, "", "amount is too large (max $10,000,000.00)")
	case errors.Is(err, ErrEmptyDescription):
		return NewError(KindValidation, "", "description is missing")
	case errors.Is(err, ErrDescriptionLong):
		return NewError(KindValidation, "", "description is too long")
	default:
		return WrapError(KindValidation, "record is not valid", err)
	}
}
