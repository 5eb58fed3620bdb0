package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/calsync/internal/auth"
	"github.com/felixgeelhaar/calsync/internal/session"
	"github.com/felixgeelhaar/calsync/internal/tui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign out and manage your account",
	Long: `Manage your calendar account.

The session is kept between runs in the configured session backend
(a file under ~/.config/calsync by default).

Subcommands:
  login     Sign in with email and password
  logout    Sign out on this machine
  signup    Create an account
  status    Show who is signed in
  password  Change your password

Examples:
  calsync auth login --email jane@example.com
  calsync auth signup --role employee --departments "IT, HR"
  calsync auth status --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in with your email and password. Missing values are asked for
when a terminal is attached.

After signing in, this device is registered for event reminders if
notifications are enabled.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		if err := a.auth.Logout(cmd.Context()); err != nil {
			return err
		}
		return a.print(message{Message: "Signed out."})
	},
}

var authSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an employee or admin account.

Employees choose at least one department. Admins enter the enrollment code
they were given. Signing up does not sign you in.`,
	Args: cobra.NoArgs,
	RunE: runAuthSignup,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is signed in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		return a.print(statusView{
			State:   a.auth.State().String(),
			User:    a.auth.User(),
			BaseURL: a.client.BaseURL(),
		})
	},
}

var authPasswordCmd = gate(&cobra.Command{
	Use:   "password",
	Short: "Change your password",
	Args:  cobra.NoArgs,
	RunE:  runAuthPassword,
}, "session")

func init() {
	authLoginCmd.Flags().String("email", "", "account email")
	authLoginCmd.Flags().String("password", "", "account password (asked for when omitted)")

	authSignupCmd.Flags().String("first-name", "", "first name")
	authSignupCmd.Flags().String("last-name", "", "last name")
	authSignupCmd.Flags().String("email", "", "account email")
	authSignupCmd.Flags().String("password", "", "account password")
	authSignupCmd.Flags().String("role", "", "employee or admin (default employee)")
	authSignupCmd.Flags().String("departments", "", "comma separated departments, for employees")
	authSignupCmd.Flags().String("admin-code", "", "enrollment code, for admins")

	authPasswordCmd.Flags().String("current", "", "current password")
	authPasswordCmd.Flags().String("new", "", "new password")
	authPasswordCmd.Flags().String("confirm", "", "new password again")

	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authSignupCmd, authStatusCmd, authPasswordCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	creds := tui.Credentials{}
	creds.Email, _ = cmd.Flags().GetString("email")
	creds.Password, _ = cmd.Flags().GetString("password")
	if (creds.Email == "" || creds.Password == "") && tui.ShouldPrompt() {
		if err := tui.RunForm(tui.LoginForm(&creds)); err != nil {
			return err
		}
	}

	// the registration attempt may prompt, so it waits for the spinner
	release := a.agent.Hold()
	var user session.User
	err = tui.WithSpinner(ctx, "Signing in...", func(ctx context.Context) error {
		u, err := a.auth.Login(ctx, creds.Email, creds.Password)
		user = u
		return err
	})
	release()
	if err != nil {
		return err
	}

	// the login started a push registration; let it finish before exiting
	a.agent.Wait()

	return a.print(loginResult{User: user, ReturnTo: a.takeReturn(ctx)})
}

func runAuthSignup(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	flags := cmd.Flags()
	r := tui.Registration{}
	r.FirstName, _ = flags.GetString("first-name")
	r.LastName, _ = flags.GetString("last-name")
	r.Email, _ = flags.GetString("email")
	r.Password, _ = flags.GetString("password")
	r.Role, _ = flags.GetString("role")
	r.AdminCode, _ = flags.GetString("admin-code")
	depts, _ := flags.GetString("departments")
	r.Departments = tui.ParseList(depts)

	if signupIncomplete(r) && tui.ShouldPrompt() {
		if err := tui.RunForm(tui.SignupForm(&r, a.departmentNames(ctx))); err != nil {
			return err
		}
	}

	var msg string
	err = tui.WithSpinner(ctx, "Creating account...", func(ctx context.Context) error {
		m, err := a.auth.Signup(ctx, auth.SignupForm{
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Email:       r.Email,
			Password:    r.Password,
			Role:        session.Role(strings.ToLower(strings.TrimSpace(r.Role))),
			Departments: r.Departments,
			AdminCode:   r.AdminCode,
		})
		msg = m
		return err
	})
	if err != nil {
		return err
	}

	if msg == "" {
		msg = "Account created."
	}
	return a.print(message{Message: msg + "\nRun 'calsync auth login' to sign in."})
}

func signupIncomplete(r tui.Registration) bool {
	if r.FirstName == "" || r.LastName == "" || r.Email == "" || r.Password == "" || r.Role == "" {
		return true
	}
	if r.Role == string(session.RoleAdmin) {
		return r.AdminCode == ""
	}
	return len(r.Departments) == 0
}

// departmentNames lists departments for the signup form. A failure leaves
// the list empty; the form then skips the department question.
func (a *app) departmentNames(ctx context.Context) []string {
	depts, err := a.client.ListDepartments(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("could not load departments")
		return nil
	}
	names := make([]string, 0, len(depts))
	for _, d := range depts {
		names = append(names, d.Name)
	}
	return names
}

func runAuthPassword(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}

	p := tui.PasswordChange{}
	p.Current, _ = cmd.Flags().GetString("current")
	p.New, _ = cmd.Flags().GetString("new")
	p.Confirm, _ = cmd.Flags().GetString("confirm")
	if (p.Current == "" || p.New == "" || p.Confirm == "") && tui.ShouldPrompt() {
		if err := tui.RunForm(tui.PasswordForm(&p)); err != nil {
			return err
		}
	}

	msg, err := a.auth.ChangePassword(cmd.Context(), p.Current, p.New, p.Confirm)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Password changed."
	}
	return a.print(message{Message: msg})
}

type loginResult struct {
	User     session.User `json:"user" yaml:"user"`
	ReturnTo string       `json:"return_to,omitempty" yaml:"return_to,omitempty"`
}

func (r loginResult) String() string {
	s := fmt.Sprintf("Signed in as %s <%s> (%s)", displayName(r.User), r.User.Email, r.User.Role)
	if r.ReturnTo != "" {
		s += fmt.Sprintf("\nContinue with: calsync %s", r.ReturnTo)
	}
	return s
}

type statusView struct {
	State   string        `json:"state" yaml:"state"`
	User    *session.User `json:"user,omitempty" yaml:"user,omitempty"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
}

func (s statusView) String() string {
	var b strings.Builder
	if s.User == nil {
		b.WriteString("Not signed in.\n")
	} else {
		fmt.Fprintf(&b, "Signed in as %s <%s>\n", displayName(*s.User), s.User.Email)
		fmt.Fprintf(&b, "Role:        %s\n", s.User.Role)
		if depts := s.User.Departments(); len(depts) > 0 {
			fmt.Fprintf(&b, "Departments: %s\n", strings.Join(depts, ", "))
		}
		fmt.Fprintf(&b, "Can create events: %s\n", yesNo(s.User.CanCreateEvents || s.User.IsAdmin()))
	}
	fmt.Fprintf(&b, "Backend:     %s", s.BaseURL)
	return b.String()
}

func displayName(u session.User) string {
	if n := u.FullName(); n != "" {
		return n
	}
	return u.Email
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
