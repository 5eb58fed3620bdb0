// Package calendar turns what a user enters for a new event into the payload
// the backend accepts.
package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/errors"
)

// Input layouts.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// wireLayout is how the backend expects event times. Times are sent as
// entered with a Z suffix; the backend treats them as wall clock times.
const wireLayout = "2006-01-02T15:04:05.000Z"

// DefaultReminders are minutes before the start.
var DefaultReminders = []int{15, 60}

// Draft is an event as entered, before validation.
type Draft struct {
	Title       string
	Description string
	StartDate   string
	StartTime   string
	EndDate     string
	EndTime     string
	Location    string
	AllDay      bool
	// OrganizationWide events go to everyone; otherwise Departments is used.
	OrganizationWide bool
	Departments      []string
	Reminders        []int
	Recurrence       string
}

// NewDraft returns a draft with the defaults of the create form.
func NewDraft() Draft {
	return Draft{
		OrganizationWide: true,
		Reminders:        append([]int(nil), DefaultReminders...),
	}
}

// Build validates d and returns the creation payload. All problems are
// reported together, each on its own line, in form order.
func (d Draft) Build() (api.NewEvent, error) {
	var problems []string
	field := ""
	fail := func(f, msg string) {
		if field == "" {
			field = f
		}
		problems = append(problems, msg)
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		fail("title", "Event title is required")
	}

	startDate, startErr := parseDate(d.StartDate)
	switch {
	case strings.TrimSpace(d.StartDate) == "":
		fail("start_date", "Start date is required")
	case startErr != nil:
		fail("start_date", fmt.Sprintf("Start date must look like %s", DateLayout))
	}
	startClock, startClockErr := parseClock(d.StartTime)
	if !d.AllDay {
		switch {
		case strings.TrimSpace(d.StartTime) == "":
			fail("start_time", "Start time is required")
		case startClockErr != nil:
			fail("start_time", fmt.Sprintf("Start time must look like %s", TimeLayout))
		}
	}

	endDate, endErr := parseDate(d.EndDate)
	switch {
	case strings.TrimSpace(d.EndDate) == "":
		fail("end_date", "End date is required")
	case endErr != nil:
		fail("end_date", fmt.Sprintf("End date must look like %s", DateLayout))
	}
	endClock, endClockErr := parseClock(d.EndTime)
	if !d.AllDay {
		switch {
		case strings.TrimSpace(d.EndTime) == "":
			fail("end_time", "End time is required")
		case endClockErr != nil:
			fail("end_time", fmt.Sprintf("End time must look like %s", TimeLayout))
		}
	}

	var start, end time.Time
	if startErr == nil && endErr == nil {
		if d.AllDay {
			start = startDate
			end = endDate.Add(24*time.Hour - time.Second)
		} else {
			// a missing clock compares as start or end of day
			start = startDate
			if startClockErr == nil {
				start = startDate.Add(startClock)
			}
			end = endDate.Add(23*time.Hour + 59*time.Minute)
			if endClockErr == nil {
				end = endDate.Add(endClock)
			}
		}
		if !end.After(start) {
			fail("end_date", "End date/time must be after start date/time")
		}
	}

	departments := cleanList(d.Departments)
	if !d.OrganizationWide && len(departments) == 0 {
		fail("departments", "Please select at least one department")
	}

	for _, m := range d.Reminders {
		if m < 0 {
			fail("reminders", "Reminders must be minutes before the start")
			break
		}
	}

	if len(problems) > 0 {
		return api.NewEvent{}, errors.NewValidationFailure(field, strings.Join(problems, "\n"))
	}

	if d.OrganizationWide {
		departments = []string{}
	}
	reminders := append([]int(nil), d.Reminders...)
	sort.Ints(reminders)

	return api.NewEvent{
		Title:              title,
		Description:        strings.TrimSpace(d.Description),
		StartDateTime:      start.Format(wireLayout),
		EndDateTime:        end.Format(wireLayout),
		Location:           strings.TrimSpace(d.Location),
		IsAllDay:           d.AllDay,
		IsOrganizationWide: d.OrganizationWide,
		Departments:        departments,
		Reminders:          reminders,
		RecurrenceRule:     strings.TrimSpace(d.Recurrence),
	}, nil
}

// ParseReminders reads a comma separated list of minutes.
func ParseReminders(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := strconv.Atoi(part)
		if err != nil || m < 0 {
			return nil, errors.NewValidationFailure("reminders",
				fmt.Sprintf("Reminder %q must be a number of minutes", part))
		}
		out = append(out, m)
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// parseClock returns the offset into the day.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
