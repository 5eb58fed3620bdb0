package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/metrics"
	"github.com/felixgeelhaar/calsync/internal/notify"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notification", "notif"},
	Short:   "Event reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var notificationsListCmd = gate(&cobra.Command{
	Use:   "list",
	Short: "List delivered reminders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		ns, err := a.client.ListNotifications(cmd.Context())
		if err != nil {
			return err
		}
		if unread, _ := cmd.Flags().GetBool("unread"); unread {
			kept := ns[:0]
			for _, n := range ns {
				if !n.IsRead() {
					kept = append(kept, n)
				}
			}
			ns = kept
		}
		return a.print(notificationList(ns))
	},
}, "session")

var notificationsReadCmd = gate(&cobra.Command{
	Use:   "read <id>",
	Short: "Mark a reminder as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := a.client.MarkNotificationRead(cmd.Context(), id); err != nil {
			return err
		}
		return a.print(message{Message: fmt.Sprintf("Reminder %d marked as read.", id)})
	},
}, "session")

var notificationsListenCmd = gate(&cobra.Command{
	Use:   "listen",
	Short: "Register this device and show reminders as they arrive",
	Long: `Register this device for push reminders and show incoming reminders
until interrupted.

Reminders come from the configured source: polling the backend
(notifications.source: polling) or a websocket relay
(notifications.source: websocket). With notifications.metrics_addr set,
/metrics and /healthz are served on that address while listening.`,
	Args: cobra.NoArgs,
	RunE: runNotificationsListen,
}, "session")

func init() {
	notificationsListCmd.Flags().Bool("unread", false, "only unread reminders")

	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadCmd, notificationsListenCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runNotificationsListen(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	agent := a.newAgent(
		notify.WithMessageSource(a.messageSource()),
		notify.WithDisplay(a.display()),
	)

	serveErr := make(chan error, 1)
	if addr := a.cfg.Notifications.MetricsAddr; addr != "" {
		handler := metrics.NewRouter(a.registry, func(context.Context) (string, bool) {
			return "ok (" + a.auth.State().String() + ")", true
		})
		go func() { serveErr <- metrics.Serve(ctx, addr, handler) }()
		a.logger.Info("serving metrics", "addr", addr)
	}

	outcome := agent.Start(ctx)
	switch outcome {
	case notify.OutcomeUnsupported, notify.OutcomeDenied, notify.OutcomeNoToken:
		cancel()
		agent.Wait()
		fmt.Fprintf(a.stderr, "Reminders cannot be shown on this device (%s).\n", outcome)
		fmt.Fprintln(a.stderr, "Set notifications.enabled: true and notifications.permission: granted in the config file to receive them.")
		return nil
	}

	fmt.Fprintf(a.stderr, "Listening for reminders (registration: %s). Press Ctrl+C to stop.\n", outcome)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			cancel()
			agent.Wait()
			return fmt.Errorf("metrics listener: %w", err)
		}
	}
	cancel()
	agent.Wait()
	return nil
}

// display picks how reminders are shown: boxes on a terminal, or one JSON
// document per line for json and yaml output.
func (a *app) display() notify.Display {
	if a.opts.Format == "text" {
		return notify.NewTerminalDisplay(a.stdout)
	}
	enc := json.NewEncoder(a.stdout)
	return notify.DisplayFunc(func(m notify.Message) {
		if err := enc.Encode(m); err != nil {
			a.logger.WithError(err).Warn("could not write reminder")
		}
	})
}

type notificationList []api.Notification

func (l notificationList) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l))
	for _, n := range l {
		state := "unread"
		if n.IsRead() {
			state = "read"
		}
		rows = append(rows, []string{
			strconv.FormatInt(n.ID, 10),
			n.Title,
			n.StartDateTime,
			n.NotifyAt,
			state,
		})
	}
	return []string{"ID", "EVENT", "STARTS", "REMIND AT", "STATE"}, rows
}
