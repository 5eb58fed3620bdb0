// Package auth owns the signed-in state of the client: startup restore,
// login, signup, logout and the self-healing sign-out that follows a 401.
package auth

import "github.com/felixgeelhaar/calsync/internal/session"

// State is the lifecycle state of the current user.
type State int

// Lifecycle states.
const (
	// StateUnknown is the state before Start has restored the session.
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Reason says what caused a transition.
type Reason string

// Transition reasons.
const (
	ReasonRestore         Reason = "restore"
	ReasonLogin           Reason = "login"
	ReasonLogout          Reason = "logout"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonProfile         Reason = "profile"
)

// Transition is delivered to subscribers after every state change. User is
// set when To is StateAuthenticated.
type Transition struct {
	From   State
	To     State
	User   *session.User
	Reason Reason
}

// EntersAuthenticated reports whether the transition starts a new signed-in
// session, either from another state or by logging in again as someone else.
// Profile refreshes do not count.
func (t Transition) EntersAuthenticated() bool {
	if t.To != StateAuthenticated {
		return false
	}
	return t.From != StateAuthenticated || t.Reason == ReasonLogin
}
