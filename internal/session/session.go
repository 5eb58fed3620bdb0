// Package session holds the signed-in identity of the client and is the only
// code that touches its persisted form.
//
// Two keys are persisted: the bearer token as a plain string and the user
// record as JSON. They are written and cleared together; a restore that finds
// only one of them treats the session as absent and removes the leftover.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Persisted keys.
const (
	TokenKey = "session_token"
	UserKey  = "user"
)

// Role is the organizational role of a user.
type Role string

// Known roles.
const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// ID is a user identifier. The backend emits ids as strings for some stores
// and as numbers for others, so both decode into the same value.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as text.
func (id ID) String() string { return string(id) }

// User is the profile of the signed-in user. It is replaced as a whole,
// never patched field by field.
type User struct {
	ID              ID     `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Role            Role   `json:"role"`
	Department      string `json:"department,omitempty"`
	CanCreateEvents bool   `json:"can_create_events"`
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Departments splits the comma separated department field.
func (u User) Departments() []string {
	if u.Department == "" {
		return nil
	}
	parts := strings.Split(u.Department, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Session is a bearer token together with the user it belongs to.
type Session struct {
	Token string
	User  User
}

// decodeUser parses a persisted user record. A record without an id is not
// considered valid structured data.
func decodeUser(raw string) (User, error) {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, err
	}
	if u.ID == "" {
		return User{}, fmt.Errorf("user record has no id")
	}
	return u, nil
}

func encodeUser(u User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
