package planner

import (
	"context"
	"strings"
	"time"

	"studycal/internal/apperr"
	"studycal/internal/grid"
	"studycal/internal/ics"
	appLog "studycal/internal/log"
	"studycal/internal/model"
)

func (p *Planner) ListCalendars(ctx context.Context, user string) ([]model.Calendar, error) {
	if err := requireUser("calendars.list", user); err != nil {
		return nil, err
	}
	return p.st.ListCalendars(ctx, user)
}

// ImportCalendar parses an uploaded .ics file and stores it as a new
// grouping. Nothing is stored when the file does not parse. Event ids that
// already exist for the user are replaced with fresh ones.
func (p *Planner) ImportCalendar(ctx context.Context, user, fileName string, body []byte) (ics.ImportResult, error) {
	const op = "calendars.import"
	if err := requireUser(op, user); err != nil {
		return ics.ImportResult{}, err
	}

	res, err := p.bridge.Import(fileName, body)
	if err != nil {
		return ics.ImportResult{}, err
	}

	unlock := p.lockUser(user)
	defer unlock()

	existing, err := p.st.ListEvents(ctx, user)
	if err != nil {
		return ics.ImportResult{}, err
	}
	p.dedupeIDs(res.Events, existing, "")

	if err := p.st.SaveCalendar(ctx, user, res.Calendar); err != nil {
		return ics.ImportResult{}, err
	}
	if len(res.Events) > 0 {
		if err := p.st.CreateEvents(ctx, user, res.Calendar.ID, res.Events); err != nil {
			if derr := p.st.DeleteCalendar(ctx, user, res.Calendar.ID); derr != nil {
				appLog.Error("import rollback failed", derr, "user", user, "calendar_id", res.Calendar.ID)
			}
			return ics.ImportResult{}, err
		}
	}
	appLog.Info("calendar imported", "user", user, "calendar_id", res.Calendar.ID, "events", len(res.Events))
	return res, nil
}

// dedupeIDs gives a new id to every event whose id is already taken by an
// existing event outside keepCalendar, or by an earlier event in the batch.
func (p *Planner) dedupeIDs(events, existing []model.CalendarEvent, keepCalendar string) {
	taken := make(map[string]struct{}, len(existing)+len(events))
	for _, ev := range existing {
		if keepCalendar != "" && ev.CalendarID == keepCalendar {
			continue
		}
		taken[ev.ID] = struct{}{}
	}
	for i := range events {
		if _, dup := taken[events[i].ID]; dup {
			old := events[i].ID
			events[i].ID = p.ids.NewID()
			appLog.Debug("import: replaced colliding event id", "old", old, "new", events[i].ID)
		}
		taken[events[i].ID] = struct{}{}
	}
}

// ExportCalendar renders one grouping as an .ics document and returns the
// download file name with it.
func (p *Planner) ExportCalendar(ctx context.Context, user, calendarID string) (string, string, error) {
	const op = "calendars.export"
	if err := requireUser(op, user); err != nil {
		return "", "", err
	}
	cals, err := p.st.ListCalendars(ctx, user)
	if err != nil {
		return "", "", err
	}
	cal, ok := findCalendar(cals, calendarID)
	if !ok {
		return "", "", apperr.NotFound(op, "calendar")
	}
	all, err := p.st.ListEvents(ctx, user)
	if err != nil {
		return "", "", err
	}
	events := make([]model.CalendarEvent, 0, len(all))
	for _, ev := range all {
		if ev.CalendarID == calendarID {
			events = append(events, ev)
		}
	}
	return ics.ExportFileName(cal.Name), p.bridge.Export(events, cal.Name), nil
}

// DeleteCalendar removes a grouping and all its events. It reports how many
// events were removed.
func (p *Planner) DeleteCalendar(ctx context.Context, user, calendarID string) (int, error) {
	const op = "calendars.delete"
	if err := requireUser(op, user); err != nil {
		return 0, err
	}
	if strings.TrimSpace(calendarID) == "" {
		return 0, apperr.Validation(op, "calendarId is required")
	}

	unlock := p.lockUser(user)
	defer unlock()

	n, err := p.st.DeleteCalendarEvents(ctx, user, calendarID)
	if err != nil {
		return 0, err
	}
	err = p.st.DeleteCalendar(ctx, user, calendarID)
	// Events posted directly under an id never get a grouping record.
	if apperr.IsNotFound(err) && n > 0 {
		err = nil
	}
	if err != nil {
		return 0, err
	}
	appLog.Info("calendar deleted", "user", user, "calendar_id", calendarID, "events", n)
	return n, nil
}

// RefreshSubscription replaces the events of a subscribed feed's grouping
// with the contents of body. The grouping keeps its id and colour across
// refreshes.
func (p *Planner) RefreshSubscription(ctx context.Context, src ics.Source, body []byte) (int, error) {
	const op = "subscriptions.refresh"
	if err := requireUser(op, src.Username); err != nil {
		return 0, err
	}
	if strings.TrimSpace(src.ID) == "" {
		return 0, apperr.Validation(op, "subscription id is required")
	}

	res, err := p.bridge.Import(src.Name, body)
	if err != nil {
		return 0, err
	}

	unlock := p.lockUser(src.Username)
	defer unlock()

	cals, err := p.st.ListCalendars(ctx, src.Username)
	if err != nil {
		return 0, err
	}
	cal := res.Calendar
	cal.ID = src.ID
	if prev, ok := findCalendar(cals, src.ID); ok {
		cal.Color = prev.Color
	}
	if strings.TrimSpace(src.Name) != "" {
		cal.Name = strings.TrimSpace(src.Name)
	}

	existing, err := p.st.ListEvents(ctx, src.Username)
	if err != nil {
		return 0, err
	}
	for i := range res.Events {
		res.Events[i].CalendarID = cal.ID
		res.Events[i].CalendarName = cal.Name
	}
	p.dedupeIDs(res.Events, existing, cal.ID)

	if err := p.st.SaveCalendar(ctx, src.Username, cal); err != nil {
		return 0, err
	}
	// New events are written first and stale ones removed afterwards, so a
	// failed write leaves the previous set in place.
	if len(res.Events) > 0 {
		if err := p.st.CreateEvents(ctx, src.Username, cal.ID, res.Events); err != nil {
			p.restoreCalendar(ctx, src.Username, cal.ID, cals)
			return 0, err
		}
	}
	fresh := make(map[string]struct{}, len(res.Events))
	for _, ev := range res.Events {
		fresh[ev.ID] = struct{}{}
	}
	for _, ev := range existing {
		if ev.CalendarID != cal.ID {
			continue
		}
		if _, ok := fresh[ev.ID]; ok {
			continue
		}
		if err := p.st.DeleteEvent(ctx, src.Username, ev.ID); err != nil && !apperr.IsNotFound(err) {
			return 0, err
		}
	}
	appLog.Info("subscription refreshed", "user", src.Username, "calendar_id", cal.ID, "events", len(res.Events))
	return len(res.Events), nil
}

// restoreCalendar puts back the grouping record as it was before a failed
// refresh, or removes it when it did not exist.
func (p *Planner) restoreCalendar(ctx context.Context, user, calendarID string, before []model.Calendar) {
	var err error
	if prev, ok := findCalendar(before, calendarID); ok {
		err = p.st.SaveCalendar(ctx, user, prev)
	} else {
		err = p.st.DeleteCalendar(ctx, user, calendarID)
	}
	if err != nil {
		appLog.Error("refresh rollback failed", err, "user", user, "calendar_id", calendarID)
	}
}

// Month builds the month grid for user with their events and the task
// occurrences falling in the month. month is 0-indexed.
func (p *Planner) Month(ctx context.Context, user string, year, month int, selected *time.Time) (grid.MonthView, error) {
	const op = "grid.month"
	if err := requireUser(op, user); err != nil {
		return grid.MonthView{}, err
	}
	if month < 0 || month > 11 {
		return grid.MonthView{}, apperr.Validation(op, "month must be between 0 and 11")
	}

	events, err := p.st.ListEvents(ctx, user)
	if err != nil {
		return grid.MonthView{}, err
	}
	cals, err := p.st.ListCalendars(ctx, user)
	if err != nil {
		return grid.MonthView{}, err
	}
	tasks, err := p.st.ListTasks(ctx, user)
	if err != nil {
		return grid.MonthView{}, err
	}

	from := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, p.loc)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	exp, err := ics.ExpandTasks(tasks, ics.ExpandConfig{DisplayLocation: p.loc, RangeStart: from, RangeEnd: to})
	if err != nil {
		return grid.MonthView{}, err
	}

	return grid.Month(year, month, grid.Options{
		Location:    p.loc,
		Now:         p.now(),
		Selected:    selected,
		Events:      events,
		Occurrences: exp.Occurrences,
		Calendars:   cals,
	}), nil
}
