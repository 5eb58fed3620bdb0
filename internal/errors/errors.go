package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Transport errors (NET-001 to NET-099)
	ErrCodeNetworkFailure ErrorCode = "NET-001"

	// Server responded with an error (REQ-001 to REQ-099)
	ErrCodeRequestFailed ErrorCode = "REQ-001"

	// Session errors (AUTH-001 to AUTH-099)
	ErrCodeUnauthenticated ErrorCode = "AUTH-001"
	ErrCodeForbidden       ErrorCode = "AUTH-002"

	// Client-side checks that never reach the network (VAL-001 to VAL-099)
	ErrCodeValidationFailure ErrorCode = "VAL-001"

	// Configuration errors (CFG-001 to CFG-099)
	ErrCodeConfigInvalid ErrorCode = "CFG-001"

	// Persistence errors (STORE-001 to STORE-099)
	ErrCodeStoreFailed ErrorCode = "STORE-001"
)

// CalsyncError represents an error with code, optional HTTP status and suggestions
type CalsyncError struct {
	Code        ErrorCode
	Message     string
	Status      int
	Field       string
	Suggestions []string
	Cause       error

	// Remote is set when Message was supplied by the backend rather than
	// synthesized by the client.
	Remote bool
}

// Error implements the error interface
func (e *CalsyncError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *CalsyncError) Unwrap() error {
	return e.Cause
}

// Is matches another CalsyncError by code so sentinel comparisons work.
func (e *CalsyncError) Is(target error) bool {
	t, ok := target.(*CalsyncError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new CalsyncError
func New(code ErrorCode, message string) *CalsyncError {
	return &CalsyncError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CalsyncError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *CalsyncError {
	return &CalsyncError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *CalsyncError) WithSuggestion(suggestion string) *CalsyncError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithStatus records the HTTP status that produced the error
func (e *CalsyncError) WithStatus(status int) *CalsyncError {
	e.Status = status
	return e
}

// WithField names the input field a validation error belongs to
func (e *CalsyncError) WithField(field string) *CalsyncError {
	e.Field = field
	return e
}

// FromServer marks Message as backend supplied
func (e *CalsyncError) FromServer() *CalsyncError {
	e.Remote = true
	return e
}

// NewNetworkFailure reports a request that never got a response.
func NewNetworkFailure(cause error) *CalsyncError {
	return Wrap(ErrCodeNetworkFailure, "Network error", cause).
		WithSuggestion("Check that the calendar service is reachable").
		WithSuggestion("Run 'calsync doctor' to verify the configured API address")
}

// NewRequestFailed reports a non-2xx response.
func NewRequestFailed(status int, message string) *CalsyncError {
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}
	return New(ErrCodeRequestFailed, message).WithStatus(status)
}

// NewUnauthenticated reports a missing, expired or revoked session.
func NewUnauthenticated(message string) *CalsyncError {
	if message == "" {
		message = "authentication required"
	}
	return New(ErrCodeUnauthenticated, message).
		WithStatus(http.StatusUnauthorized).
		WithSuggestion("Run 'calsync auth login' to sign in")
}

// NewForbidden reports a role or permission mismatch.
func NewForbidden(message string) *CalsyncError {
	if message == "" {
		message = "access denied"
	}
	return New(ErrCodeForbidden, message).WithStatus(http.StatusForbidden)
}

// NewValidationFailure reports a client-side field check.
func NewValidationFailure(field, message string) *CalsyncError {
	return New(ErrCodeValidationFailure, message).WithField(field)
}

// NewConfigInvalidError creates a configuration error
func NewConfigInvalidError(details string) *CalsyncError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Check ~/.config/calsync/config.yaml and CALSYNC_* environment variables")
}

// NewStoreError wraps a persistence backend failure
func NewStoreError(op string, cause error) *CalsyncError {
	return Wrap(ErrCodeStoreFailed, fmt.Sprintf("session storage %s failed", op), cause)
}

// CodeOf returns the code of the first CalsyncError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var ce *CalsyncError
	if stderrors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}

// Message returns the bare message without code prefix or suggestions,
// falling back to err.Error() for foreign errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *CalsyncError
	if stderrors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

// RemoteMessage returns the backend supplied message in err's chain, if any.
func RemoteMessage(err error) (string, bool) {
	var ce *CalsyncError
	if stderrors.As(err, &ce) && ce.Remote && ce.Message != "" {
		return ce.Message, true
	}
	return "", false
}

// StatusOf returns the HTTP status attached to err, or 0.
func StatusOf(err error) int {
	var ce *CalsyncError
	if stderrors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsUnauthenticated reports whether err is an AUTH-001 error.
func IsUnauthenticated(err error) bool { return hasCode(err, ErrCodeUnauthenticated) }

// IsForbidden reports whether err is an AUTH-002 error.
func IsForbidden(err error) bool { return hasCode(err, ErrCodeForbidden) }

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidationFailure) }

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool { return hasCode(err, ErrCodeNetworkFailure) }

// IsRequestFailed reports whether err is a non-2xx server response other than 401/403.
func IsRequestFailed(err error) bool { return hasCode(err, ErrCodeRequestFailed) }
