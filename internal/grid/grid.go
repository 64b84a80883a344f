// Package grid builds the month view: leading blank cells, one cell per day,
// and the events that start on each day.
//
// Months are 0-indexed (0 = January .. 11 = December). Values outside that
// range are normalised by time.Date and are not an error. All day
// comparisons happen in the viewer's display location.
package grid

import (
	"time"

	"studycal/internal/model"
)

var DaysOfWeek = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var Months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Cell is one position in the month view. A blank cell has a zero Date.
type Cell struct {
	Date time.Time
}

func (c Cell) Blank() bool { return c.Date.IsZero() }

// DaysInMonth is the day-of-month of "day 0 of the following month".
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday is the weekday (0 = Sunday) of the 1st of the month.
func FirstWeekday(year, month int) int {
	return int(time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC).Weekday())
}

// BuildGrid returns FirstWeekday blank cells followed by the days 1..N at
// local midnight in loc. A nil loc means time.Local.
func BuildGrid(year, month int, loc *time.Location) []Cell {
	if loc == nil {
		loc = time.Local
	}
	blanks := FirstWeekday(year, month)
	days := DaysInMonth(year, month)

	cells := make([]Cell, blanks, blanks+days)
	for day := 1; day <= days; day++ {
		cells = append(cells, Cell{Date: time.Date(year, time.Month(month+1), day, 0, 0, 0, 0, loc)})
	}
	return cells
}

// SameDay compares the year, month and day of a and b after converting both
// into loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// EventsOnDate keeps the events whose start falls on date's calendar day.
// Time of day and duration are ignored.
func EventsOnDate(date time.Time, events []model.CalendarEvent, loc *time.Location) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0)
	for _, ev := range events {
		if SameDay(ev.Start, date, loc) {
			out = append(out, ev)
		}
	}
	return out
}

// OccurrencesOnDate is EventsOnDate for task occurrences.
func OccurrencesOnDate(date time.Time, occs []model.Occurrence, loc *time.Location) []model.Occurrence {
	out := make([]model.Occurrence, 0)
	for _, o := range occs {
		if SameDay(o.Start, date, loc) {
			out = append(out, o)
		}
	}
	return out
}

func IsToday(date, now time.Time, loc *time.Location) bool {
	return SameDay(date, now, loc)
}

// IsSelected is false when nothing is selected.
func IsSelected(date time.Time, selected *time.Time, loc *time.Location) bool {
	return selected != nil && SameDay(date, *selected, loc)
}
