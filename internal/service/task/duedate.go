package task

import (
	"time"
)

// DueSoonWindow is how far ahead a task counts as due soon.
const DueSoonWindow = 7 * 24 * time.Hour

const dateOnly = "2006-01-02"

// Accepted due date layouts, most specific first. A value is stored verbatim;
// the layout only matters for validation and for the due-soon window.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateOnly,
}

// parseDueDate parses s with the accepted layouts. dateOnly reports a value
// without a time of day. Values without a zone are read in loc.
func parseDueDate(s string, loc *time.Location) (t time.Time, dateOnlyValue bool, ok bool) {
	for _, layout := range dueDateLayouts {
		parsed, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return parsed, layout == dateOnly, true
		}
	}
	return time.Time{}, false, false
}

// dueWithin reports whether due falls in the forward-looking window that
// starts at now. Date-only values compare by calendar day in loc, so a task
// due today stays due soon until midnight in loc, not in the server's zone.
func dueWithin(due time.Time, dateOnlyValue bool, now time.Time, window time.Duration, loc *time.Location) bool {
	if dateOnlyValue {
		today := calendarDay(now.In(loc))
		last := today.Add(window)
		day := calendarDay(due.In(loc))
		return !day.Before(today) && !day.After(last)
	}
	return !due.Before(now) && !due.After(now.Add(window))
}

// calendarDay maps t to midnight UTC of its date, so days compare without
// daylight saving shifts.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
