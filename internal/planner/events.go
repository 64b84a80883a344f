package planner

import (
	"context"
	"strings"

	"studycal/internal/apperr"
	appLog "studycal/internal/log"
	"studycal/internal/model"
)

func (p *Planner) ListEvents(ctx context.Context, user string) ([]model.CalendarEvent, error) {
	if err := requireUser("events.list", user); err != nil {
		return nil, err
	}
	return p.st.ListEvents(ctx, user)
}

// CreateEvents stores a batch of events under calendarID. Events without
// an id get a generated one.
func (p *Planner) CreateEvents(ctx context.Context, user, calendarID string, events []model.CalendarEvent) ([]model.CalendarEvent, error) {
	const op = "events.create"
	if err := requireUser(op, user); err != nil {
		return nil, err
	}
	if strings.TrimSpace(calendarID) == "" {
		return nil, apperr.Validation(op, "calendarId is required")
	}
	if len(events) == 0 {
		return nil, apperr.Validation(op, "events are required")
	}

	out := make([]model.CalendarEvent, len(events))
	for i, ev := range events {
		if strings.TrimSpace(ev.ID) == "" {
			ev.ID = p.ids.NewID()
		}
		ev.CalendarID = calendarID
		out[i] = ev
	}
	if err := p.st.CreateEvents(ctx, user, calendarID, out); err != nil {
		return nil, err
	}
	appLog.Info("events created", "user", user, "calendar_id", calendarID, "count", len(out))
	return out, nil
}

// AddEvent stores one manually created event. Without a calendarId it goes
// into the default grouping, which is created on first use.
func (p *Planner) AddEvent(ctx context.Context, user string, ev model.CalendarEvent) (model.CalendarEvent, error) {
	const op = "events.add"
	if err := requireUser(op, user); err != nil {
		return model.CalendarEvent{}, err
	}
	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Title == "" {
		return model.CalendarEvent{}, apperr.Validation(op, "title is required")
	}
	if ev.Start.IsZero() {
		return model.CalendarEvent{}, apperr.Validation(op, "start is required")
	}
	if ev.End.IsZero() {
		ev.End = ev.Start
	}

	cals, err := p.st.ListCalendars(ctx, user)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	if ev.CalendarID == "" {
		ev.CalendarID = model.DefaultCalendarID
	}
	cal, ok := findCalendar(cals, ev.CalendarID)
	switch {
	case ok:
	case ev.CalendarID == model.DefaultCalendarID:
		cal = model.Calendar{ID: model.DefaultCalendarID, Name: model.DefaultCalendarName, Color: model.DefaultCalendarColor}
		if err := p.st.SaveCalendar(ctx, user, cal); err != nil {
			return model.CalendarEvent{}, err
		}
	default:
		return model.CalendarEvent{}, apperr.NotFound(op, "calendar")
	}
	ev.CalendarName = cal.Name
	if ev.ID == "" {
		ev.ID = p.ids.NewID()
	}

	if err := p.st.CreateEvents(ctx, user, cal.ID, []model.CalendarEvent{ev}); err != nil {
		return model.CalendarEvent{}, err
	}
	return ev, nil
}

func (p *Planner) UpdateEvent(ctx context.Context, user, id string, upd model.EventUpdate) (model.CalendarEvent, error) {
	const op = "events.update"
	if err := requireUser(op, user); err != nil {
		return model.CalendarEvent{}, err
	}
	if strings.TrimSpace(id) == "" {
		return model.CalendarEvent{}, apperr.Validation(op, "id is required")
	}
	if upd.Empty() {
		return model.CalendarEvent{}, apperr.Validation(op, "updates are required")
	}
	return p.st.UpdateEvent(ctx, user, id, upd)
}

func (p *Planner) DeleteEvent(ctx context.Context, user, id string) error {
	const op = "events.delete"
	if err := requireUser(op, user); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return apperr.Validation(op, "id is required")
	}
	return p.st.DeleteEvent(ctx, user, id)
}

func findCalendar(cals []model.Calendar, id string) (model.Calendar, bool) {
	for _, c := range cals {
		if c.ID == id {
			return c, true
		}
	}
	return model.Calendar{}, false
}
