package grid

import (
	"fmt"
	"io"
	"strings"
	"time"

	"studycal/internal/model"
)

// Day is a rendered cell with everything the month view shows for it.
type Day struct {
	Blank    bool      `json:"blank"`
	Date     time.Time `json:"date,omitempty"`
	Day      int       `json:"day,omitempty"`
	Today    bool      `json:"today,omitempty"`
	Selected bool      `json:"selected,omitempty"`

	Events []model.CalendarEvent `json:"events,omitempty"`
	Tasks  []model.Occurrence    `json:"tasks,omitempty"`

	// CalendarIDs lists the groupings with at least one event on this day,
	// in the order of the calendars passed to Options.
	CalendarIDs []string `json:"calendarIds,omitempty"`
}

// MonthView is the full month as the UI renders it.
type MonthView struct {
	Year      int              `json:"year"`
	Month     int              `json:"month"`
	MonthName string           `json:"monthName"`
	Weekdays  []string         `json:"weekdays"`
	TimeZone  string           `json:"timezone"`
	Calendars []model.Calendar `json:"calendars"`
	Days      []Day            `json:"days"`
}

// Options carries everything Month needs besides year and month.
type Options struct {
	Location    *time.Location
	Now         time.Time
	Selected    *time.Time
	Events      []model.CalendarEvent
	Occurrences []model.Occurrence
	Calendars   []model.Calendar
}

// Month composes BuildGrid with the per-day lookups.
func Month(year, month int, opts Options) MonthView {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	view := MonthView{
		Year:      first.Year(),
		Month:     int(first.Month()) - 1,
		MonthName: Months[first.Month()-1],
		Weekdays:  DaysOfWeek[:],
		TimeZone:  loc.String(),
		Calendars: opts.Calendars,
	}
	if view.Calendars == nil {
		view.Calendars = []model.Calendar{}
	}

	cells := BuildGrid(year, month, loc)
	view.Days = make([]Day, 0, len(cells))
	for _, c := range cells {
		if c.Blank() {
			view.Days = append(view.Days, Day{Blank: true})
			continue
		}
		events := EventsOnDate(c.Date, opts.Events, loc)
		view.Days = append(view.Days, Day{
			Date:        c.Date,
			Day:         c.Date.Day(),
			Today:       IsToday(c.Date, now, loc),
			Selected:    IsSelected(c.Date, opts.Selected, loc),
			Events:      events,
			Tasks:       OccurrencesOnDate(c.Date, opts.Occurrences, loc),
			CalendarIDs: calendarsPresent(opts.Calendars, events),
		})
	}
	return view
}

func calendarsPresent(cals []model.Calendar, events []model.CalendarEvent) []string {
	if len(events) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		seen[ev.CalendarID] = true
	}
	var out []string
	for _, c := range cals {
		if seen[c.ID] {
			out = append(out, c.ID)
		}
	}
	return out
}

// WriteText renders the view as a plain text month, one week per line.
// Days with events are marked with '*', today with brackets.
func (v MonthView) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", v.MonthName, v.Year)
	for _, wd := range v.Weekdays {
		fmt.Fprintf(&b, " %-4s", wd)
	}
	b.WriteString("\n")

	for i, d := range v.Days {
		switch {
		case d.Blank:
			b.WriteString("     ")
		default:
			mark := " "
			if len(d.Events) > 0 || len(d.Tasks) > 0 {
				mark = "*"
			}
			if d.Today {
				fmt.Fprintf(&b, "[%2d]%s", d.Day, mark)
			} else {
				fmt.Fprintf(&b, " %2d %s", d.Day, mark)
			}
		}
		if i%7 == 6 {
			b.WriteString("\n")
		}
	}
	if len(v.Days)%7 != 0 {
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
