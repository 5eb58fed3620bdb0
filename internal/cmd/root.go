package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/exitcode"
	"github.com/felixgeelhaar/calsync/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "calsync",
	Short: "Organizational calendar and reminders from the terminal",
	Long: `calsync is a client for the organizational calendar service.

It keeps you signed in between runs, lists and creates events, manages
departments and their feeds, and shows event reminders as notifications.

Examples:
  calsync auth login
  calsync events list
  calsync events create --title "Standup" --start-date 2026-10-20 --start-time 09:00 \
      --end-date 2026-10-20 --end-time 09:15
  calsync notifications listen`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepare,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx. The command's app is torn
// down before it returns, whether or not the command succeeded.
func ExecuteContext(ctx context.Context) error {
	start := time.Now()
	cmd, err := rootCmd.ExecuteContextC(ctx)
	finish(cmd, err, time.Since(start))
	return err
}

// NoColor reports whether --no-color was given.
func NoColor() bool {
	v, _ := rootCmd.PersistentFlags().GetBool("no-color")
	return v
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $XDG_CONFIG_HOME/calsync/config.yaml)")
	flags.String("format", "text", "output format: text, json, yaml")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.String("api-url", "", "backend address, overrides base address resolution")
}

// prepare builds the app for the command about to run and evaluates the
// command's access requirement.
func prepare(cmd *cobra.Command, _ []string) error {
	if isOffline(cmd) {
		return nil
	}

	opts, err := globalOptionsFrom(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Root().Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	current = a

	ctx, a.span = telemetry.StartCommandSpan(ctx, commandName(cmd))
	cmd.SetContext(ctx)

	a.auth.Start(ctx)
	a.attachAgent(ctx)

	return a.enforce(ctx, cmd)
}

// isOffline reports whether cmd runs without an app. Help and shell
// completion never touch config or session.
func isOffline(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationOffline] == "true" {
			return true
		}
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// finish records the run and releases the app.
func finish(cmd *cobra.Command, err error, d time.Duration) {
	a := current
	current = nil
	if a == nil {
		return
	}

	name := "calsync"
	if cmd != nil {
		name = commandName(cmd)
	}
	a.metrics.RecordCommand(name, err == nil, d)
	if err != nil {
		if code, ok := errors.CodeOf(err); ok {
			a.metrics.RecordError(string(code))
		}
		code := exitcode.DetermineExitCode(err)
		a.logger.WithError(err).Debug("command failed",
			"command", name, "exit_code", code, "exit", exitcode.Describe(code))
	}
	if a.span != nil {
		telemetry.RecordError(a.span, err)
		a.span.End()
	}
	a.close()
}
