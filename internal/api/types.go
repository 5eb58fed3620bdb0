package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/calsync/internal/session"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    session.User `json:"user"`
}

// SignupRequest is the account creation payload. Department holds the
// selected departments joined with ", ".
type SignupRequest struct {
	FirstName  string       `json:"first_name"`
	LastName   string       `json:"last_name"`
	Email      string       `json:"email"`
	Password   string       `json:"password"`
	Role       session.Role `json:"role"`
	Department string       `json:"department,omitempty"`
}

// MessageResponse is the body most mutations answer with.
type MessageResponse struct {
	Message string `json:"message"`
}

// ProfileUpdate carries the editable profile fields. Empty fields are not
// sent.
type ProfileUpdate struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
}

// Empty reports whether no field is set.
func (p ProfileUpdate) Empty() bool {
	return p == ProfileUpdate{}
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type pushTokenRequest struct {
	Token string `json:"fcm_token"`
}

// Event is a calendar entry as listed by the backend.
type Event struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	StartDateTime string  `json:"start_datetime"`
	EndDateTime   string  `json:"end_datetime"`
	CreatedBy     int64   `json:"created_by"`
	CreatedAt     string  `json:"created_at"`
	CreatorName   *string `json:"creator_name"`
	CreatorEmail  *string `json:"creator_email"`
}

// NewEvent is the event creation payload. Reminders are minutes before the
// start; the backend defaults to a single 15 minute reminder when omitted.
type NewEvent struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	StartDateTime      string   `json:"start_datetime"`
	EndDateTime        string   `json:"end_datetime"`
	Location           string   `json:"location"`
	IsAllDay           bool     `json:"is_all_day"`
	IsOrganizationWide bool     `json:"is_organization_wide"`
	Departments        []string `json:"departments"`
	Reminders          []int    `json:"reminders,omitempty"`
	RecurrenceRule     string   `json:"recurrence_rule,omitempty"`
}

// CreatedEvent is the response to event creation.
type CreatedEvent struct {
	Success bool   `json:"success"`
	EventID int64  `json:"event_id"`
	Message string `json:"message"`
}

// EventStats are the dashboard counters.
type EventStats struct {
	TotalEvents     int `json:"total_events"`
	TodayEvents     int `json:"today_events"`
	UpcomingEvents  int `json:"upcoming_events"`
	CompletedEvents int `json:"completed_events"`
}

// Department is an organizational unit.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DepartmentFeed is an announcement posted to one department.
type DepartmentFeed struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Department string `json:"department"`
	CreatedBy  int64  `json:"created_by"`
	CreatedAt  string `json:"created_at"`
}

// NewDepartmentFeed is the feed creation payload.
type NewDepartmentFeed struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Department string `json:"department"`
}

// Notification is a delivered event reminder. Read is absent on backends
// that do not track read state.
type Notification struct {
	ID            int64  `json:"id"`
	EventID       int64  `json:"event_id"`
	NotifyAt      string `json:"notify_at"`
	Sent          Flag   `json:"sent"`
	Read          *Flag  `json:"read,omitempty"`
	Title         string `json:"title"`
	StartDateTime string `json:"start_datetime"`
	EndDateTime   string `json:"end_datetime"`
}

// Health is the backend health report.
type Health struct {
	Status           string `json:"status"`
	Database         string `json:"database"`
	DepartmentsCount int    `json:"departments_count"`
	Message          string `json:"message"`
	Error            string `json:"error,omitempty"`
}

// Flag is a boolean the backend may encode as true/false or as 0/1.
type Flag bool

// UnmarshalJSON accepts a JSON boolean or number.
func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true":
		*f = true
		return nil
	case "false", "null":
		*f = false
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flag must be a boolean or number: %w", err)
	}
	*f = n.String() != "0"
	return nil
}

// IsRead reports whether the notification is known to be read.
func (n Notification) IsRead() bool {
	return n.Read != nil && bool(*n.Read)
}
