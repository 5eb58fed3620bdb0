package exitcode

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/calsync/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"ValidationError", ValidationError, 3},
		{"RequestError", RequestError, 4},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
		{"ConfigError", ConfigError, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error returns success", nil, Success},
		{"unauthenticated", errors.NewUnauthenticated("token expired"), AuthError},
		{"forbidden", errors.NewForbidden("Admin access required"), AuthError},
		{"network", errors.NewNetworkFailure(stderrors.New("connection refused")), NetworkError},
		{"validation", errors.NewValidationFailure("admin_code", "Invalid admin code."), ValidationError},
		{"request failed", errors.NewRequestFailed(500, ""), RequestError},
		{"config", errors.NewConfigInvalidError("bad backend"), ConfigError},
		{"store", errors.NewStoreError("write", stderrors.New("disk full")), GeneralError},
		{"wrapped code", fmt.Errorf("events list: %w", errors.NewUnauthenticated("")), AuthError},
		{"unknown flag", stderrors.New("unknown flag: --foo"), UsageError},
		{"unknown command", stderrors.New(`unknown command "evnts" for "calsync"`), UsageError},
		{"required flag", stderrors.New(`required flag(s) "title" not set`), UsageError},
		{"arg count", stderrors.New("accepts 1 arg(s), received 0"), UsageError},
		// a plain message mentioning a token is no longer guessed at
		{"plain text", stderrors.New("invalid token"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	for code := Success; code <= ConfigError; code++ {
		if Describe(code) == "Unknown error" {
			t.Errorf("code %d has no description", code)
		}
	}
	if Describe(99) != "Unknown error" {
		t.Error("unexpected description for unknown code")
	}
}
