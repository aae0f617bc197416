// Package errors provides the typed application errors of the compliance
// core. Every failure surfaced by the engine carries a Kind so callers can
// branch on the failure class without parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable failure class.
type Kind string

const (
	KindInvestorNotFound         Kind = "investor_not_found"
	KindJurisdictionNotSupported Kind = "jurisdiction_not_supported"
	KindFrameworkNotSupported    Kind = "framework_not_supported"
	KindVerificationFailed       Kind = "verification_failed"
	KindInsufficientData         Kind = "insufficient_data"
	KindInvalidInput             Kind = "invalid_input"
	KindAccessDenied             Kind = "access_denied"
	KindDataIntegrity            Kind = "data_integrity_error"
	KindRateLimitExceeded        Kind = "rate_limit_exceeded"
	KindExternalService          Kind = "external_service_error"
	KindConfiguration            Kind = "configuration_error"
)

// Error is a classified application error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. A nil cause yields a plain error of
// the kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// Is matches two classified errors by kind, so
// errors.Is(err, New(kind, "")) works without message equality.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of a classified error anywhere in the chain, or
// "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Is re-exports the standard library matcher.
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports the standard library matcher.
func As(err error, target any) bool { return errors.As(err, target) }
