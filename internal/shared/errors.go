package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ErrorKind classifies terminal outcomes of a mutation pipeline. Every
// state-changing operation returns one of these kinds on failure; no error
// escapes the service boundary untyped.
type ErrorKind string

const (
	KindNotAuthenticated ErrorKind = "NOT_AUTHENTICATED"
	KindMissingTenant    ErrorKind = "MISSING_TENANT_CONTEXT"
	KindValidation       ErrorKind = "VALIDATION_ERROR"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindScopeDenied      ErrorKind = "SCOPE_DENIED"
	KindUnauthorized     ErrorKind = "UNAUTHORIZED"
	KindInternal         ErrorKind = "INTERNAL"
)

// ActionError is the failure value returned by service operations. It carries
// a kind the caller can branch on plus a single human-readable message.
type ActionError struct {
	Kind    ErrorKind
	Message string
	// Fields holds per-field validation messages for KindValidation.
	Fields map[string]string

	cause error
}

func (e *ActionError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for field, msg := range e.Fields {
			parts = append(parts, field+": "+msg)
		}
		return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As chains.
func (e *ActionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// NotAuthenticatedError reports a missing or invalid identity.
func NotAuthenticatedError() *ActionError {
	return &ActionError{Kind: KindNotAuthenticated, Message: "authentication required"}
}

// MissingTenantError reports that no tenant could be resolved for the request.
func MissingTenantError() *ActionError {
	return &ActionError{Kind: KindMissingTenant, Message: "tenant context missing"}
}

// ValidationError reports payload schema failures with per-field messages.
func ValidationError(fields map[string]string) *ActionError {
	return &ActionError{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// NotFoundError reports an absent record. Cross-tenant access deliberately
// produces the same error so record existence never leaks across tenants.
func NotFoundError() *ActionError {
	return &ActionError{Kind: KindNotFound, Message: "record not found"}
}

// ScopeDeniedError reports that the requested authoring scope is not permitted.
func ScopeDeniedError(msg string) *ActionError {
	return &ActionError{Kind: KindScopeDenied, Message: msg}
}

// UnauthorizedError reports a denied action on an existing record.
func UnauthorizedError(msg string) *ActionError {
	return &ActionError{Kind: KindUnauthorized, Message: msg}
}

// InternalError wraps an unexpected failure without exposing its detail.
func InternalError(cause error) *ActionError {
	return &ActionError{Kind: KindInternal, Message: "internal error", cause: cause}
}

// AsActionError extracts an *ActionError from err, wrapping unknown errors
// as KindInternal so callers always observe a typed failure.
func AsActionError(err error) *ActionError {
	if err == nil {
		return nil
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, ErrNotFound) {
		return NotFoundError()
	}
	return InternalError(err)
}
