// Package guard decides whether the current user may open a view.
package guard

import (
	"github.com/felixgeelhaar/calsync/internal/auth"
	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/session"
)

// Outcome is the kind of decision.
type Outcome string

const (
	OutcomeLoading         Outcome = "loading"
	OutcomeAllow           Outcome = "allow"
	OutcomeRedirectLogin   Outcome = "redirect_login"
	OutcomeRedirectLanding Outcome = "redirect_landing"
)

// Permission names a capability beyond the role.
type Permission string

const (
	PermissionCreateEvents Permission = "can_create_events"
	PermissionAdmin        Permission = "is_admin"
)

// LoginView and LandingView are where redirects lead.
const (
	LoginView   = "login"
	LandingView = "dashboard"
)

// Requirement is what a view asks of the user. Zero fields mean no
// requirement.
type Requirement struct {
	Role       session.Role
	Permission Permission
}

// Decision is the result of Decide.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	// Redirect is the view to go to instead, set for redirect outcomes.
	Redirect string `json:"redirect,omitempty"`
	// ReturnTo is the originally requested location, kept for login redirects.
	ReturnTo string `json:"return_to,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Allowed reports whether the view may be shown.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Decide evaluates req for the given state and user. location is the view
// that was asked for. Decide has no side effects.
func Decide(state auth.State, user *session.User, req Requirement, location string) Decision {
	switch state {
	case auth.StateUnknown:
		return Decision{Outcome: OutcomeLoading}
	case auth.StateAnonymous:
		return Decision{
			Outcome:  OutcomeRedirectLogin,
			Redirect: LoginView,
			ReturnTo: location,
			Reason:   "not signed in",
		}
	}
	if user == nil {
		return Decision{Outcome: OutcomeRedirectLogin, Redirect: LoginView, ReturnTo: location, Reason: "not signed in"}
	}

	if req.Role != "" && user.Role != req.Role {
		return landing("requires the " + string(req.Role) + " role")
	}

	switch req.Permission {
	case PermissionCreateEvents:
		if !user.CanCreateEvents && !user.IsAdmin() {
			return landing("not allowed to create events")
		}
	case PermissionAdmin:
		if !user.IsAdmin() {
			return landing("admin access required")
		}
	}
	return Decision{Outcome: OutcomeAllow}
}

func landing(reason string) Decision {
	return Decision{Outcome: OutcomeRedirectLanding, Redirect: LandingView, Reason: reason}
}

// Err turns a denying decision into the matching error. It returns nil for
// allow and loading.
func (d Decision) Err() error {
	switch d.Outcome {
	case OutcomeRedirectLogin:
		e := errors.NewUnauthenticated("Please log in to continue")
		if d.ReturnTo != "" {
			e.WithSuggestion("Then run 'calsync " + d.ReturnTo + "' again")
		}
		return e
	case OutcomeRedirectLanding:
		return errors.NewForbidden(d.Reason).
			WithSuggestion("Run 'calsync events list' to return to the dashboard")
	}
	return nil
}
