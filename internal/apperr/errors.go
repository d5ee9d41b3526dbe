package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure so transports can pick a response.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindDuplicate  Kind = "duplicate"
	KindAuth       Kind = "auth"
	KindForbidden  Kind = "forbidden"
	KindUpstream   Kind = "upstream"
	KindServer     Kind = "server"
)

// Error carries a kind, a dotted code of the form <operation>.<reason> and the underlying cause.
type Error struct {
	kind Kind
	code string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the dotted error code.
func (e *Error) Code() string {
	return e.code
}

// Kind returns the error classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// New builds an Error for the operation and reason.
func New(kind Kind, operation, reason string, cause error) error {
	return &Error{
		kind: kind,
		code: fmt.Sprintf("%s.%s", operation, reason),
		err:  cause,
	}
}

// KindOf reports the kind of err, or KindServer for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.kind
	}
	return KindServer
}

// CodeOf reports the code of err, or an empty string for unclassified errors.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.code
	}
	return ""
}

// Message returns the client-facing text for err: the recorded cause when present, otherwise the code.
func Message(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.err == nil {
		return appErr.code
	}
	return appErr.err.Error()
}
