package auth

import "github.com/felixgeelhaar/calsync/internal/errors"

// loginFailure maps a gateway error to what the login form shows: the
// server's text when it sent a structured error, "Network error" when the
// request never completed and "Login failed" otherwise. A rejected login is
// a failed request, not an expired session.
func loginFailure(err error) error {
	if errors.IsValidation(err) || errors.IsNetwork(err) {
		return err
	}
	status := errors.StatusOf(err)
	if msg, ok := errors.RemoteMessage(err); ok {
		return errors.NewRequestFailed(status, msg).FromServer()
	}
	return errors.NewRequestFailed(status, "Login failed")
}

// surface keeps errors that already carry a meaningful message and replaces
// the rest with fallback.
func surface(err error, fallback string) error {
	switch {
	case errors.IsValidation(err), errors.IsNetwork(err),
		errors.IsUnauthenticated(err), errors.IsForbidden(err):
		return err
	}
	if _, ok := errors.RemoteMessage(err); ok {
		return err
	}
	if _, ok := errors.CodeOf(err); ok && !errors.IsRequestFailed(err) {
		return err
	}
	return errors.NewRequestFailed(errors.StatusOf(err), fallback)
}
