package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Credentials are the answers of the login form.
type Credentials struct {
	Email    string
	Password string
}

// LoginForm asks for email and password. Fields already set are kept as
// defaults.
func LoginForm(c *Credentials) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(&c.Email).Validate(required("Email")),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).
				Value(&c.Password).Validate(required("Password")),
		),
	)
}

// Registration is the answers of the signup form.
type Registration struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	Role        string
	Departments []string
	AdminCode   string
}

// SignupForm asks for a new account. Employees pick departments from
// departments; admins enter the enrollment code instead.
func SignupForm(r *Registration, departments []string) *huh.Form {
	if r.Role == "" {
		r.Role = "employee"
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("First name").Value(&r.FirstName),
			huh.NewInput().Title("Last name").Value(&r.LastName),
			huh.NewInput().Title("Email").Value(&r.Email),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&r.Password),
			huh.NewSelect[string]().Title("Role").
				Options(huh.NewOption("Employee", "employee"), huh.NewOption("Admin", "admin")).
				Value(&r.Role),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().Title("Departments").
				Options(huh.NewOptions(departments...)...).
				Value(&r.Departments),
		).WithHideFunc(func() bool { return r.Role != "employee" || len(departments) == 0 }),
		huh.NewGroup(
			huh.NewInput().Title("Admin code").EchoMode(huh.EchoModePassword).Value(&r.AdminCode),
		).WithHideFunc(func() bool { return r.Role != "admin" }),
	)
}

// PasswordChange is the answers of the change password form.
type PasswordChange struct {
	Current string
	New     string
	Confirm string
}

// PasswordForm asks for the current password and the new one twice.
func PasswordForm(p *PasswordChange) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Current password").EchoMode(huh.EchoModePassword).Value(&p.Current),
			huh.NewInput().Title("New password").EchoMode(huh.EchoModePassword).Value(&p.New),
			huh.NewInput().Title("Confirm new password").EchoMode(huh.EchoModePassword).Value(&p.Confirm),
		),
	)
}

// ParseList splits a comma separated flag value and drops empty entries.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RunForm runs f and wraps the error like the single prompts do.
func RunForm(f *huh.Form) error {
	if err := f.Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}
