// Package gwerrors defines the gateway's error taxonomy: a small set of
// kinds carried on one error type, in the pattern EdgeFlow's saas package
// used for its own wrapper errors.
package gwerrors

import (
	"errors"
	"fmt"
)

// Kind identifies which of the taxonomy's error categories an error
// belongs to. HTTP handlers switch on Kind to pick a status code.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindTransportUnsupported Kind = "TRANSPORT_UNSUPPORTED"
	KindConnection          Kind = "CONNECTION"
	KindCommandTimeout      Kind = "COMMAND_TIMEOUT"
	KindFrame               Kind = "FRAME"
	KindAuth                Kind = "AUTH"
	KindNotFound            Kind = "NOT_FOUND"
	KindFatal               Kind = "FATAL"
)

// GatewayError is the concrete error type for every taxonomy kind.
type GatewayError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on Kind alone, so callers can write
// errors.Is(err, gwerrors.ErrNotFound("")) style checks if they want, but
// the idiomatic path is errors.As plus a Kind switch (see KindOf).
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func ErrValidation(msg string) error {
	return &GatewayError{Kind: KindValidation, Message: msg}
}

func ErrTransportUnsupported(msg string) error {
	return &GatewayError{Kind: KindTransportUnsupported, Message: msg}
}

func ErrConnection(msg string, err error) error {
	return &GatewayError{Kind: KindConnection, Message: msg, Err: err}
}

func ErrCommandTimeout(msg string) error {
	return &GatewayError{Kind: KindCommandTimeout, Message: msg}
}

func ErrFrame(msg string) error {
	return &GatewayError{Kind: KindFrame, Message: msg}
}

func ErrAuth(msg string) error {
	return &GatewayError{Kind: KindAuth, Message: msg}
}

func ErrNotFound(msg string) error {
	return &GatewayError{Kind: KindNotFound, Message: msg}
}

func ErrFatal(msg string, err error) error {
	return &GatewayError{Kind: KindFatal, Message: msg, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *GatewayError, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return "", false
}
