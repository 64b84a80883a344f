// Package store defines the persistence collaborator. Implementations live
// in subpackages (boltstore, mongostore) plus the in-memory Memory store.
//
// Update and delete of a record that does not exist, or that belongs to a
// different user, fail with an apperr NotFound error. Any other backend
// failure is reported as an apperr Transport error.
package store

import (
	"context"
	"sort"

	"studycal/internal/model"
)

type EventStore interface {
	ListEvents(ctx context.Context, username string) ([]model.CalendarEvent, error)
	// CreateEvents stores events tagged with username and calendarID.
	CreateEvents(ctx context.Context, username, calendarID string, events []model.CalendarEvent) error
	UpdateEvent(ctx context.Context, username, id string, upd model.EventUpdate) (model.CalendarEvent, error)
	DeleteEvent(ctx context.Context, username, id string) error
	// DeleteCalendarEvents removes every event of one grouping and reports
	// how many were removed. Zero is not an error.
	DeleteCalendarEvents(ctx context.Context, username, calendarID string) (int, error)
}

type CalendarStore interface {
	ListCalendars(ctx context.Context, username string) ([]model.Calendar, error)
	// SaveCalendar inserts or replaces a grouping.
	SaveCalendar(ctx context.Context, username string, cal model.Calendar) error
	DeleteCalendar(ctx context.Context, username, id string) error
}

type TaskStore interface {
	// ListTasks returns the user's tasks, newest CreatedAt first.
	ListTasks(ctx context.Context, userID string) ([]model.Task, error)
	GetTask(ctx context.Context, userID, id string) (model.Task, error)
	CreateTask(ctx context.Context, task model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, userID, id string, upd model.TaskUpdate) (model.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
}

// PrefStore is user-scoped durable key-value storage.
type PrefStore interface {
	// GetPref reports ok=false for a key that was never set.
	GetPref(ctx context.Context, username, key string) (value string, ok bool, err error)
	SetPref(ctx context.Context, username, key, value string) error
}

type Store interface {
	EventStore
	CalendarStore
	TaskStore
	PrefStore
	Close() error
}

// SortEvents orders events by start, then id.
func SortEvents(events []model.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}

// SortTasks orders tasks newest CreatedAt first, then id.
func SortTasks(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// SortCalendars orders groupings by name, then id.
func SortCalendars(cals []model.Calendar) {
	sort.SliceStable(cals, func(i, j int) bool {
		if cals[i].Name != cals[j].Name {
			return cals[i].Name < cals[j].Name
		}
		return cals[i].ID < cals[j].ID
	})
}
