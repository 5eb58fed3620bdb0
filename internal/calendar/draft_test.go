package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/calsync/internal/errors"
)

func validDraft() Draft {
	d := NewDraft()
	d.Title = "  Quarterly review "
	d.StartDate = "2026-10-20"
	d.StartTime = "09:30"
	d.EndDate = "2026-10-20"
	d.EndTime = "11:00"
	return d
}

func TestBuild_Timed(t *testing.T) {
	ev, err := validDraft().Build()
	require.NoError(t, err)

	assert.Equal(t, "Quarterly review", ev.Title)
	assert.Equal(t, "2026-10-20T09:30:00.000Z", ev.StartDateTime)
	assert.Equal(t, "2026-10-20T11:00:00.000Z", ev.EndDateTime)
	assert.True(t, ev.IsOrganizationWide)
	assert.Equal(t, []string{}, ev.Departments)
	assert.Equal(t, []int{15, 60}, ev.Reminders)
}

func TestBuild_AllDaySpansTheDay(t *testing.T) {
	d := validDraft()
	d.AllDay = true
	d.StartTime, d.EndTime = "", ""

	ev, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20T00:00:00.000Z", ev.StartDateTime)
	assert.Equal(t, "2026-10-20T23:59:59.000Z", ev.EndDateTime)
}

func TestBuild_DepartmentEvent(t *testing.T) {
	d := validDraft()
	d.OrganizationWide = false
	d.Departments = []string{" IT ", "", "HR"}
	d.Reminders = []int{60, 5}

	ev, err := d.Build()
	require.NoError(t, err)
	assert.False(t, ev.IsOrganizationWide)
	assert.Equal(t, []string{"IT", "HR"}, ev.Departments)
	assert.Equal(t, []int{5, 60}, ev.Reminders)
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Draft)
		wantField string
		wantMsg   string
	}{
		{"missing title", func(d *Draft) { d.Title = "  " }, "title", "Event title is required"},
		{"missing start date", func(d *Draft) { d.StartDate = "" }, "start_date", "Start date is required"},
		{"bad start date", func(d *Draft) { d.StartDate = "20/10/2026" }, "start_date", "Start date must look like 2006-01-02"},
		{"missing start time", func(d *Draft) { d.StartTime = "" }, "start_time", "Start time is required"},
		{"missing end date", func(d *Draft) { d.EndDate = "" }, "end_date", "End date is required"},
		{"missing end time", func(d *Draft) { d.EndTime = "" }, "end_time", "End time is required"},
		{"end before start", func(d *Draft) { d.EndTime = "09:00" }, "end_date", "End date/time must be after start date/time"},
		{"end equals start", func(d *Draft) { d.EndTime = "09:30" }, "end_date", "End date/time must be after start date/time"},
		{"no departments", func(d *Draft) { d.OrganizationWide = false }, "departments", "Please select at least one department"},
		{"negative reminder", func(d *Draft) { d.Reminders = []int{-5} }, "reminders", "Reminders must be minutes before the start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)

			_, err := d.Build()
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, errors.Message(err), tt.wantMsg)

			var ce *errors.CalsyncError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantField, ce.Field)
		})
	}
}

func TestBuild_ReportsEveryProblem(t *testing.T) {
	_, err := Draft{}.Build()
	require.Error(t, err)

	msg := errors.Message(err)
	assert.Contains(t, msg, "Event title is required")
	assert.Contains(t, msg, "Start date is required")
	assert.Contains(t, msg, "End time is required")
}

func TestParseReminders(t *testing.T) {
	got, err := ParseReminders("15, 60,,1440")
	require.NoError(t, err)
	assert.Equal(t, []int{15, 60, 1440}, got)

	got, err = ParseReminders("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseReminders("soon")
	assert.True(t, errors.IsValidation(err))
}
