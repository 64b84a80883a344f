package ics

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"studycal/internal/apperr"
	appLog "studycal/internal/log"
	"studycal/internal/model"
)

// DefaultImportName is used when the uploaded file has no usable name.
const DefaultImportName = "Imported Calendar"

// ImportResult is one parsed file: a new calendar grouping and its events,
// all tagged with the grouping's id and name.
type ImportResult struct {
	Calendar model.Calendar
	Events   []model.CalendarEvent
}

// Import parses an iCalendar document into events sharing one freshly
// generated calendar grouping.
//
//   - Anything that is not a VCALENDAR document fails with a parse error.
//   - A VEVENT without a usable DTSTART fails the whole file; callers never
//     see a partial event set.
//   - Missing UIDs are generated, a missing DTEND collapses to DTSTART.
func (b *Bridge) Import(fileName string, body []byte) (ImportResult, error) {
	const op = "ics.import"

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return ImportResult{}, apperr.Parse(op, errors.New("empty ICS body"))
	}
	if !bytes.HasPrefix(bytes.ToUpper(firstLine(trimmed)), []byte("BEGIN:VCALENDAR")) {
		return ImportResult{}, apperr.Parse(op, errors.New("missing BEGIN:VCALENDAR"))
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(trimmed))
	if err != nil {
		appLog.Error("ics parse failed", err, "file", fileName)
		return ImportResult{}, apperr.Parse(op, err)
	}

	res := ImportResult{
		Calendar: model.Calendar{
			ID:    b.newID(),
			Name:  CalendarName(fileName),
			Color: b.newColor(),
		},
	}

	vevents := cal.Events()
	res.Events = make([]model.CalendarEvent, 0, len(vevents))
	for i, ve := range vevents {
		ev, perr := b.parseVEvent(ve)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "file", fileName, "index", i)
			return ImportResult{}, apperr.Parse(op, perr)
		}
		ev.CalendarID = res.Calendar.ID
		ev.CalendarName = res.Calendar.Name
		res.Events = append(res.Events, ev)
	}

	appLog.Info("ics import completed", "file", fileName, "calendar_id", res.Calendar.ID, "event_count", len(res.Events))
	return res, nil
}

func (b *Bridge) parseVEvent(ve *ical.VEvent) (model.CalendarEvent, error) {
	var out model.CalendarEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil && strings.TrimSpace(p.Value) != "" {
		out.ID = strings.TrimSpace(p.Value)
	} else {
		out.ID = b.newID()
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	// UTC and TZID values are absolute; DATE and floating values are read
	// as wall clock in the bridge location.
	start, ok := b.wallClock(ve.GetProperty(ical.ComponentPropertyDtStart))
	if !ok {
		var err error
		if start, err = ve.GetStartAt(); err != nil {
			return out, errors.New("vevent " + out.ID + ": invalid DTSTART: " + err.Error())
		}
	}
	end, ok := b.wallClock(ve.GetProperty(ical.ComponentPropertyDtEnd))
	if !ok {
		var err error
		if end, err = ve.GetEndAt(); err != nil {
			end = start
		}
	}
	out.Start = start
	out.End = end

	return out, nil
}

// wallClock parses a DATE or floating date-time property in the bridge
// location. It reports false for UTC and TZID values and for anything it
// cannot read.
func (b *Bridge) wallClock(p *ical.IANAProperty) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}
	if tz := p.ICalParameters[string(ical.ParameterTzid)]; len(tz) > 0 {
		return time.Time{}, false
	}
	val := strings.TrimSpace(p.Value)
	if strings.HasSuffix(strings.ToUpper(val), "Z") {
		return time.Time{}, false
	}
	layout := "20060102T150405"
	if !strings.Contains(val, "T") {
		layout = "20060102"
	}
	t, err := time.ParseInLocation(layout, val, b.location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CalendarName derives a grouping name from an uploaded file name: the base
// name with its extension stripped.
func CalendarName(fileName string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == "/" {
		return DefaultImportName
	}
	return name
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexAny(b, "\r\n"); i >= 0 {
		return b[:i]
	}
	return b
}
