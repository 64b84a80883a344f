package store

import (
	"context"
	"sync"

	"studycal/internal/apperr"
	"studycal/internal/model"
)

// Memory keeps everything in process. It is used by tests and by
// `--store memory`.
type Memory struct {
	mu        sync.RWMutex
	events    map[string]map[string]model.CalendarEvent
	calendars map[string]map[string]model.Calendar
	tasks     map[string]map[string]model.Task
	prefs     map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		events:    make(map[string]map[string]model.CalendarEvent),
		calendars: make(map[string]map[string]model.Calendar),
		tasks:     make(map[string]map[string]model.Task),
		prefs:     make(map[string]map[string]string),
	}
}

func userMap[V any](m map[string]map[string]V, user string) map[string]V {
	um, ok := m[user]
	if !ok {
		um = make(map[string]V)
		m[user] = um
	}
	return um
}

func (m *Memory) ListEvents(_ context.Context, username string) ([]model.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.CalendarEvent, 0, len(m.events[username]))
	for _, ev := range m.events[username] {
		out = append(out, ev)
	}
	SortEvents(out)
	return out, nil
}

func (m *Memory) CreateEvents(_ context.Context, username, calendarID string, events []model.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	um := userMap(m.events, username)
	for _, ev := range events {
		ev.CalendarID = calendarID
		um[ev.ID] = ev
	}
	return nil
}

func (m *Memory) UpdateEvent(_ context.Context, username, id string, upd model.EventUpdate) (model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[username][id]
	if !ok {
		return model.CalendarEvent{}, apperr.NotFound("events.update", "event")
	}
	ev = upd.Apply(ev)
	m.events[username][id] = ev
	return ev, nil
}

func (m *Memory) DeleteEvent(_ context.Context, username, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[username][id]; !ok {
		return apperr.NotFound("events.delete", "event")
	}
	delete(m.events[username], id)
	return nil
}

func (m *Memory) DeleteCalendarEvents(_ context.Context, username, calendarID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, ev := range m.events[username] {
		if ev.CalendarID == calendarID {
			delete(m.events[username], id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListCalendars(_ context.Context, username string) ([]model.Calendar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Calendar, 0, len(m.calendars[username]))
	for _, c := range m.calendars[username] {
		out = append(out, c)
	}
	SortCalendars(out)
	return out, nil
}

func (m *Memory) SaveCalendar(_ context.Context, username string, cal model.Calendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	userMap(m.calendars, username)[cal.ID] = cal
	return nil
}

func (m *Memory) DeleteCalendar(_ context.Context, username, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calendars[username][id]; !ok {
		return apperr.NotFound("calendars.delete", "calendar")
	}
	delete(m.calendars[username], id)
	return nil
}

func (m *Memory) ListTasks(_ context.Context, userID string) ([]model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Task, 0, len(m.tasks[userID]))
	for _, t := range m.tasks[userID] {
		out = append(out, t)
	}
	SortTasks(out)
	return out, nil
}

func (m *Memory) GetTask(_ context.Context, userID, id string) (model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[userID][id]
	if !ok {
		return model.Task{}, apperr.NotFound("tasks.get", "task")
	}
	return t, nil
}

func (m *Memory) CreateTask(_ context.Context, task model.Task) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userMap(m.tasks, task.UserID)[task.ID] = task
	return task, nil
}

func (m *Memory) UpdateTask(_ context.Context, userID, id string, upd model.TaskUpdate) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[userID][id]
	if !ok {
		return model.Task{}, apperr.NotFound("tasks.update", "task")
	}
	t = upd.Apply(t)
	m.tasks[userID][id] = t
	return t, nil
}

func (m *Memory) DeleteTask(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[userID][id]; !ok {
		return apperr.NotFound("tasks.delete", "task")
	}
	delete(m.tasks[userID], id)
	return nil
}

func (m *Memory) GetPref(_ context.Context, username, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.prefs[username][key]
	return v, ok, nil
}

func (m *Memory) SetPref(_ context.Context, username, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	userMap(m.prefs, username)[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }
