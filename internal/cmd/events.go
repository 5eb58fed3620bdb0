package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/calendar"
	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/guard"
	"github.com/felixgeelhaar/calsync/internal/tui"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Aliases: []string{"event"},
	Short:   "List, create and delete calendar events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var eventsListCmd = gate(&cobra.Command{
	Use:   "list",
	Short: "List events ordered by start time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		var events []api.Event
		err = tui.WithSpinner(cmd.Context(), "Loading events...", func(ctx context.Context) error {
			evs, err := a.client.ListEvents(ctx)
			events = evs
			return err
		})
		if err != nil {
			return err
		}
		return a.print(eventList(events))
	},
}, "session")

var eventsShowCmd = gate(&cobra.Command{
	Use:   "show <id>",
	Short: "Show one event",
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
		ev, err := a.client.GetEvent(cmd.Context(), id)
		if err != nil {
			return err
		}
		return a.print(eventView(*ev))
	},
}, "session")

var eventsCreateCmd = gate(&cobra.Command{
	Use:   "create",
	Short: "Create an event",
	Long: `Create an event with reminders.

Events go to the whole organization unless --departments is given.
Reminders are minutes before the start (default 15 and 60).

Examples:
  calsync events create --title "Standup" --start-date 2026-10-20 --start-time 09:00 \
      --end-date 2026-10-20 --end-time 09:15
  calsync events create --title "Offsite" --all-day --start-date 2026-11-02 \
      --end-date 2026-11-03 --departments "IT, HR" --reminders 1440`,
	Args: cobra.NoArgs,
	RunE: runEventsCreate,
}, string(guard.PermissionCreateEvents))

var eventsDeleteCmd = gate(&cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an event you created (admins may delete any)",
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
		ok, err := confirmed(cmd, fmt.Sprintf("Delete event %d?", id))
		if err != nil {
			return err
		}
		if !ok {
			return a.print(message{Message: "Nothing deleted."})
		}
		if err := a.client.DeleteEvent(cmd.Context(), id); err != nil {
			return err
		}
		return a.print(message{Message: fmt.Sprintf("Event %d deleted.", id)})
	},
}, "session")

var eventsStatsCmd = gate(&cobra.Command{
	Use:   "stats",
	Short: "Show event counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		stats, err := a.client.EventStats(cmd.Context())
		if err != nil {
			return err
		}
		return a.print(statsView(*stats))
	},
}, "session")

func init() {
	f := eventsCreateCmd.Flags()
	f.String("title", "", "event title")
	f.String("description", "", "event description")
	f.String("start-date", "", "start date (YYYY-MM-DD)")
	f.String("start-time", "", "start time (HH:MM)")
	f.String("end-date", "", "end date (YYYY-MM-DD)")
	f.String("end-time", "", "end time (HH:MM)")
	f.String("location", "", "where the event takes place")
	f.Bool("all-day", false, "all-day event; times are ignored")
	f.String("departments", "", "comma separated departments; empty means the whole organization")
	f.String("reminders", "15,60", "comma separated reminder minutes before the start")
	f.String("recurrence", "", "recurrence rule")

	withYesFlag(eventsDeleteCmd)

	eventsCmd.AddCommand(eventsListCmd, eventsShowCmd, eventsCreateCmd, eventsDeleteCmd, eventsStatsCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsCreate(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	d := calendar.NewDraft()
	d.Title, _ = flags.GetString("title")
	d.Description, _ = flags.GetString("description")
	d.StartDate, _ = flags.GetString("start-date")
	d.StartTime, _ = flags.GetString("start-time")
	d.EndDate, _ = flags.GetString("end-date")
	d.EndTime, _ = flags.GetString("end-time")
	d.Location, _ = flags.GetString("location")
	d.AllDay, _ = flags.GetBool("all-day")
	d.Recurrence, _ = flags.GetString("recurrence")
	if depts, _ := flags.GetString("departments"); depts != "" {
		d.OrganizationWide = false
		d.Departments = tui.ParseList(depts)
	}
	reminders, _ := flags.GetString("reminders")
	if d.Reminders, err = calendar.ParseReminders(reminders); err != nil {
		return err
	}

	ev, err := d.Build()
	if err != nil {
		return err
	}

	created, err := a.client.CreateEvent(cmd.Context(), ev)
	if err != nil {
		return err
	}
	msg := created.Message
	if msg == "" {
		msg = "Event created."
	}
	if created.EventID != 0 {
		msg = fmt.Sprintf("%s (id %d)", msg, created.EventID)
	}
	return a.print(createdView{CreatedEvent: *created, text: msg})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationFailure("id", fmt.Sprintf("%q is not a valid id", s))
	}
	return id, nil
}

type eventList []api.Event

func (l eventList) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l))
	for _, ev := range l {
		rows = append(rows, []string{
			strconv.FormatInt(ev.ID, 10),
			ev.Title,
			ev.StartDateTime,
			ev.EndDateTime,
			creatorOf(ev),
		})
	}
	return []string{"ID", "TITLE", "START", "END", "CREATED BY"}, rows
}

type eventView api.Event

func (e eventView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (#%d)\n", e.Title, e.ID)
	fmt.Fprintf(&b, "Starts:     %s\n", e.StartDateTime)
	fmt.Fprintf(&b, "Ends:       %s\n", e.EndDateTime)
	if c := creatorOf(api.Event(e)); c != "" {
		fmt.Fprintf(&b, "Created by: %s\n", c)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", e.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func creatorOf(ev api.Event) string {
	switch {
	case ev.CreatorName != nil && *ev.CreatorName != "":
		return *ev.CreatorName
	case ev.CreatorEmail != nil:
		return *ev.CreatorEmail
	}
	return ""
}

type statsView api.EventStats

func (s statsView) String() string {
	return fmt.Sprintf("Total:     %d\nToday:     %d\nUpcoming:  %d\nCompleted: %d",
		s.TotalEvents, s.TodayEvents, s.UpcomingEvents, s.CompletedEvents)
}

type createdView struct {
	api.CreatedEvent `yaml:",inline"`
	text             string
}

func (c createdView) String() string { return c.text }
