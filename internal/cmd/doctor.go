package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/calsync/internal/auth"
	"github.com/felixgeelhaar/calsync/internal/config"
	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/session"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, backend and session",
	Long: `Run diagnostics to check whether calsync can reach the calendar backend.

Checks include:
  • Which backend address is used and why
  • Backend health (GET /health)
  • Session storage and the signed-in user
  • Notification settings

Examples:
  calsync doctor
  calsync doctor --format json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// DoctorReport is the result of all checks.
type DoctorReport struct {
	Config        *DoctorCheck `json:"config" yaml:"config"`
	Backend       *DoctorCheck `json:"backend" yaml:"backend"`
	Session       *DoctorCheck `json:"session" yaml:"session"`
	Notifications *DoctorCheck `json:"notifications" yaml:"notifications"`
	Issues        []string     `json:"issues" yaml:"issues"`
	NextSteps     []string     `json:"next_steps" yaml:"next_steps"`
	Healthy       bool         `json:"healthy" yaml:"healthy"`
}

// DoctorCheck is a single check result.
type DoctorCheck struct {
	Name    string         `json:"name" yaml:"name"`
	Status  string         `json:"status" yaml:"status"` // "ok", "warning", "error"
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}

	report := &DoctorReport{Issues: []string{}, NextSteps: []string{}}
	checkConfig(a, report)
	checkBackend(cmd.Context(), a, report)
	checkSession(a, report)
	checkNotifications(a, report)

	report.Healthy = len(report.Issues) == 0
	if err := a.print(report); err != nil {
		return err
	}
	if !report.Healthy {
		return errors.New(errors.ErrCodeRequestFailed, "calsync is not ready to use").
			WithSuggestion("Fix the issues listed above and run 'calsync doctor' again")
	}
	return nil
}

func checkConfig(a *app, report *DoctorReport) {
	path := a.opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	source := "host resolution"
	switch {
	case a.opts.APIURL != "":
		source = "--api-url"
	case a.cfg.API.URL != "":
		source = "api.url"
	}

	report.Config = &DoctorCheck{
		Name:    "Configuration",
		Status:  "ok",
		Message: fmt.Sprintf("backend %s (from %s)", a.client.BaseURL(), source),
		Details: map[string]any{
			"path":              path,
			"base_url":          a.client.BaseURL(),
			"timeout":           a.cfg.API.Timeout.String(),
			"validate_contract": a.cfg.API.ValidateContract,
		},
	}
}

func checkBackend(ctx context.Context, a *app, report *DoctorReport) {
	check := &DoctorCheck{Name: "Backend"}
	report.Backend = check

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	h, err := a.client.Health(ctx)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		check.Status = "error"
		check.Message = errors.Message(err)
		report.Issues = append(report.Issues, "Backend is not reachable at "+a.client.BaseURL())
		report.NextSteps = append(report.NextSteps,
			"Set api.url in the config file or pass --api-url if the backend lives elsewhere")
		return
	}

	check.Details = map[string]any{
		"database":    h.Database,
		"departments": h.DepartmentsCount,
		"latency":     elapsed.String(),
	}
	if !strings.EqualFold(h.Status, "healthy") && !strings.EqualFold(h.Status, "ok") {
		check.Status = "warning"
		check.Message = fmt.Sprintf("backend reports %q", h.Status)
		if h.Error != "" {
			check.Message += ": " + h.Error
		}
		report.Issues = append(report.Issues, "Backend is up but unhealthy")
		return
	}
	check.Status = "ok"
	check.Message = fmt.Sprintf("healthy, database %s (%s)", h.Database, elapsed)
}

func checkSession(a *app, report *DoctorReport) {
	check := &DoctorCheck{
		Name:    "Session",
		Status:  "ok",
		Details: map[string]any{"backend": a.cfg.Session.Backend},
	}
	report.Session = check

	if a.auth.State() != auth.StateAuthenticated {
		check.Status = "warning"
		check.Message = "not signed in"
		report.NextSteps = append(report.NextSteps, "Sign in with 'calsync auth login'")
		return
	}
	u := a.auth.User()
	check.Message = fmt.Sprintf("signed in as %s (%s)", u.Email, u.Role)
	if u.Role == session.RoleAdmin {
		check.Details["admin"] = true
	}
}

func checkNotifications(a *app, report *DoctorReport) {
	nc := a.cfg.Notifications
	check := &DoctorCheck{
		Name: "Notifications",
		Details: map[string]any{
			"token_source": nc.TokenSource,
			"source":       nc.Source,
			"permission":   nc.Permission,
		},
	}
	report.Notifications = check

	switch {
	case !nc.Enabled:
		check.Status = "warning"
		check.Message = "disabled"
	case nc.Permission == config.PermissionDenied:
		check.Status = "warning"
		check.Message = "permission denied in config"
	default:
		check.Status = "ok"
		check.Message = fmt.Sprintf("%s reminders via %s", nc.TokenSource, nc.Source)
	}
}

func (r *DoctorReport) String() string {
	var b strings.Builder
	b.WriteString("calsync diagnostics\n\n")
	for _, c := range []*DoctorCheck{r.Config, r.Backend, r.Session, r.Notifications} {
		if c != nil {
			fmt.Fprintf(&b, "  %s %s: %s\n", checkIcon(c.Status), c.Name, c.Message)
		}
	}

	if len(r.Issues) > 0 {
		b.WriteString("\nIssues:\n")
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "   • %s\n", issue)
		}
	}
	if len(r.NextSteps) > 0 {
		b.WriteString("\nNext steps:\n")
		for i, step := range r.NextSteps {
			fmt.Fprintf(&b, "   %d. %s\n", i+1, step)
		}
	}

	b.WriteString("\n")
	if r.Healthy {
		b.WriteString("✓ Ready to use")
	} else {
		b.WriteString("✗ Needs attention")
	}
	return b.String()
}

func checkIcon(status string) string {
	switch status {
	case "ok":
		return "✓"
	case "warning":
		return "⚠"
	case "error":
		return "✗"
	}
	return " "
}
