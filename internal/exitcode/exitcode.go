package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/calsync/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ValidationError indicates input rejected before any request was sent
	ValidationError = 3

	// RequestError indicates the backend answered with an error
	RequestError = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// ConfigError indicates an invalid configuration
	ConfigError = 7

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode maps the error code carried by err to an exit code.
// Errors without a code are usage errors when cobra produced them and
// general errors otherwise.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if code, ok := errors.CodeOf(err); ok {
		switch code {
		case errors.ErrCodeUnauthenticated, errors.ErrCodeForbidden:
			return AuthError
		case errors.ErrCodeNetworkFailure:
			return NetworkError
		case errors.ErrCodeValidationFailure:
			return ValidationError
		case errors.ErrCodeRequestFailed:
			return RequestError
		case errors.ErrCodeConfigInvalid:
			return ConfigError
		}
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") ||
		strings.Contains(errMsg, "unknown shorthand flag") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") ||
		strings.Contains(errMsg, "invalid argument") {
		return UsageError
	}

	return GeneralError
}

// Describe names an exit code.
func Describe(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ValidationError:
		return "Invalid input"
	case RequestError:
		return "Request rejected by the server"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case ConfigError:
		return "Configuration error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
