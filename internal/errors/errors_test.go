package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeRequestFailed, "test error message")

	if err.Code != ErrCodeRequestFailed {
		t.Errorf("expected code %s, got %s", ErrCodeRequestFailed, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeNetworkFailure, "Network error", cause)

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *CalsyncError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      NewRequestFailed(500, "database unavailable"),
			wantCode: "REQ-001",
			wantMsg:  "database unavailable",
		},
		{
			name:     "error with cause",
			err:      NewNetworkFailure(fmt.Errorf("dial tcp: connection refused")),
			wantCode: "NET-001",
			wantMsg:  "connection refused",
		},
		{
			name:     "generic request failure",
			err:      NewRequestFailed(502, ""),
			wantCode: "REQ-001",
			wantMsg:  "request failed with status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestSuggestionsRendered(t *testing.T) {
	err := NewUnauthenticated("")
	errStr := err.Error()

	if !strings.Contains(errStr, "Suggestions:") {
		t.Errorf("expected suggestions block, got: %s", errStr)
	}
	if !strings.Contains(errStr, "calsync auth login") {
		t.Errorf("expected login hint, got: %s", errStr)
	}
}

func TestPredicatesThroughWrapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"unauthenticated", NewUnauthenticated("token expired"), IsUnauthenticated},
		{"forbidden", NewForbidden("Admin access required"), IsForbidden},
		{"validation", NewValidationFailure("admin_code", "Invalid admin code."), IsValidation},
		{"network", NewNetworkFailure(fmt.Errorf("eof")), IsNetwork},
		{"request failed", NewRequestFailed(400, "bad"), IsRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("predicate did not match wrapped %v", tt.err)
			}
		})
	}

	if IsUnauthenticated(fmt.Errorf("plain")) {
		t.Error("plain error must not match")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New(ErrCodeUnauthenticated, "")
	err := fmt.Errorf("call: %w", NewUnauthenticated("expired"))

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, New(ErrCodeForbidden, "")) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestMessageAndStatus(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewRequestFailed(409, "Email already exists"))

	if got := Message(err); got != "Email already exists" {
		t.Errorf("Message() = %q", got)
	}
	if got := StatusOf(err); got != 409 {
		t.Errorf("StatusOf() = %d", got)
	}
	if got := Message(fmt.Errorf("foreign")); got != "foreign" {
		t.Errorf("Message() on foreign error = %q", got)
	}
	if Message(nil) != "" {
		t.Error("Message(nil) should be empty")
	}
	if StatusOf(fmt.Errorf("foreign")) != 0 {
		t.Error("StatusOf on foreign error should be 0")
	}
}

func TestValidationField(t *testing.T) {
	err := NewValidationFailure("title", "Title is required")
	if err.Field != "title" {
		t.Errorf("Field = %q", err.Field)
	}
}

func TestRemoteMessage(t *testing.T) {
	remote := fmt.Errorf("login: %w", NewRequestFailed(401, "Invalid email or password").FromServer())
	if msg, ok := RemoteMessage(remote); !ok || msg != "Invalid email or password" {
		t.Errorf("RemoteMessage() = %q, %v", msg, ok)
	}

	if _, ok := RemoteMessage(NewRequestFailed(502, "")); ok {
		t.Error("synthesized message must not count as remote")
	}
	if _, ok := RemoteMessage(fmt.Errorf("foreign")); ok {
		t.Error("foreign error must not count as remote")
	}
}
