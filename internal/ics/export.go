package ics

import (
	"strings"

	ical "github.com/arran4/golang-ical"

	"studycal/internal/model"
)

// Export serializes events into one VCALENDAR document named calendarName.
// Start and end are written as UTC date-times (YYYYMMDDTHHMMSSZ).
func (b *Bridge) Export(events []model.CalendarEvent, calendarName string) string {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	if calendarName != "" {
		cal.SetXWRCalName(calendarName)
	}

	stamp := b.now().UTC()
	for _, ev := range events {
		id := ev.ID
		if id == "" {
			id = b.newID()
		}
		ve := cal.AddEvent(id)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
	}

	return cal.Serialize()
}

// ExportFileName is the download name for a grouping: "<name>.ics".
func ExportFileName(calendarName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\r', '\n':
			return -1
		}
		return r
	}, strings.TrimSpace(calendarName))
	if name == "" {
		name = "calendar"
	}
	return name + ".ics"
}
