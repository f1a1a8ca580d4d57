// Package domainerrors defines the coded error type services return to the
// transport layer. Stores return sentinel errors (pkg/platform/sentinel);
// services translate those facts into one of the codes below so handlers can
// map errors to HTTP statuses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and logging.
type Code string

const (
	CodeBadRequest          Code = "bad_request"
	CodeUnauthorized        Code = "unauthorized"
	CodeForbidden           Code = "forbidden"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodePresenceUnverified  Code = "presence_unverified"
	CodeTamperedCertificate Code = "tampered_certificate"
	CodeInternal            Code = "internal"
)

// Error carries a code alongside a human-readable message. The wrapped cause,
// when present, is preserved for errors.Is/As chains but never serialized to
// clients.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error preserving the underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for plain
// errors so unexpected failures surface as server errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the client-safe message from err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodePresenceUnverified, CodeTamperedCertificate:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
