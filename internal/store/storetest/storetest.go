// Package storetest holds the behaviour every store.Store implementation
// must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/apperr"
	"studycal/internal/model"
	"studycal/internal/store"
)

// Run exercises s. newStore must return an empty store; it is called once
// per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("events", func(t *testing.T) { testEvents(t, newStore(t)) })
	t.Run("delete by calendar", func(t *testing.T) { testDeleteByCalendar(t, newStore(t)) })
	t.Run("calendars", func(t *testing.T) { testCalendars(t, newStore(t)) })
	t.Run("tasks", func(t *testing.T) { testTasks(t, newStore(t)) })
	t.Run("prefs", func(t *testing.T) { testPrefs(t, newStore(t)) })
}

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func testEvents(t *testing.T, s store.Store) {
	ctx := context.Background()
	defer s.Close()

	err := s.CreateEvents(ctx, "ada", "cal-1", []model.CalendarEvent{
		{ID: "quiz", Title: "Quiz", Start: at(5, 14), End: at(5, 15), CalendarName: "Term"},
		{ID: "midterm", Title: "Midterm", Start: at(1, 9), End: at(1, 11), CalendarID: "ignored", CalendarName: "Term"},
	})
	require.NoError(t, err)

	events, err := s.ListEvents(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "midterm", events[0].ID)
	assert.Equal(t, "cal-1", events[0].CalendarID)
	assert.True(t, events[0].Start.Equal(at(1, 9)))

	other, err := s.ListEvents(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)

	title := "Final"
	updated, err := s.UpdateEvent(ctx, "ada", "quiz", model.EventUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.True(t, updated.Start.Equal(at(5, 14)))

	_, err = s.UpdateEvent(ctx, "bob", "quiz", model.EventUpdate{Title: &title})
	assert.True(t, apperr.IsNotFound(err), "update of another user's event: %v", err)

	assert.True(t, apperr.IsNotFound(s.DeleteEvent(ctx, "ada", "nope")))
	require.NoError(t, s.DeleteEvent(ctx, "ada", "quiz"))

	events, err = s.ListEvents(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "midterm", events[0].ID)
}

func testDeleteByCalendar(t *testing.T, s store.Store) {
	ctx := context.Background()
	defer s.Close()

	require.NoError(t, s.CreateEvents(ctx, "ada", "term", []model.CalendarEvent{
		{ID: "a", Start: at(1, 9)}, {ID: "b", Start: at(2, 9)},
	}))
	require.NoError(t, s.CreateEvents(ctx, "ada", "club", []model.CalendarEvent{{ID: "c", Start: at(3, 9)}}))
	require.NoError(t, s.CreateEvents(ctx, "bob", "term", []model.CalendarEvent{{ID: "d", Start: at(4, 9)}}))

	n, err := s.DeleteCalendarEvents(ctx, "ada", "term")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := s.ListEvents(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "c", events[0].ID)

	bobs, err := s.ListEvents(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobs, 1)

	n, err = s.DeleteCalendarEvents(ctx, "ada", "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testCalendars(t *testing.T, s store.Store) {
	ctx := context.Background()
	defer s.Close()

	require.NoError(t, s.SaveCalendar(ctx, "ada", model.Calendar{ID: "2", Name: "Term", Color: "#111111"}))
	require.NoError(t, s.SaveCalendar(ctx, "ada", model.Calendar{ID: "1", Name: "Club", Color: "#222222"}))
	require.NoError(t, s.SaveCalendar(ctx, "ada", model.Calendar{ID: "2", Name: "Term", Color: "#333333"}))

	cals, err := s.ListCalendars(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, cals, 2)
	assert.Equal(t, "Club", cals[0].Name)
	assert.Equal(t, "#333333", cals[1].Color)

	assert.True(t, apperr.IsNotFound(s.DeleteCalendar(ctx, "bob", "1")))
	require.NoError(t, s.DeleteCalendar(ctx, "ada", "1"))
	cals, err = s.ListCalendars(ctx, "ada")
	require.NoError(t, err)
	assert.Len(t, cals, 1)
}

func testTasks(t *testing.T, s store.Store) {
	ctx := context.Background()
	defer s.Close()

	older := model.Task{ID: "t1", UserID: "ada", Title: "Read ch. 3", Repeat: model.RepeatNone,
		StartDate: at(1, 9), EndDate: at(3, 9), TaskType: "Reading", Subject: "History", CreatedAt: at(1, 0)}
	newer := older
	newer.ID, newer.Title, newer.CreatedAt = "t2", "Essay", at(2, 0)

	for _, task := range []model.Task{older, newer} {
		_, err := s.CreateTask(ctx, task)
		require.NoError(t, err)
	}

	tasks, err := s.ListTasks(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t2", tasks[0].ID)

	got, err := s.GetTask(ctx, "ada", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Read ch. 3", got.Title)

	_, err = s.GetTask(ctx, "bob", "t1")
	assert.True(t, apperr.IsNotFound(err))

	done := true
	updated, err := s.UpdateTask(ctx, "ada", "t1", model.TaskUpdate{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "History", updated.Subject)

	_, err = s.UpdateTask(ctx, "bob", "t1", model.TaskUpdate{Completed: &done})
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, s.DeleteTask(ctx, "ada", "t1"))
	assert.True(t, apperr.IsNotFound(s.DeleteTask(ctx, "ada", "t1")))
}

func testPrefs(t *testing.T, s store.Store) {
	ctx := context.Background()
	defer s.Close()

	_, ok, err := s.GetPref(ctx, "ada", "customSubjects")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetPref(ctx, "ada", "customSubjects", `["Latin"]`))
	v, ok, err := s.GetPref(ctx, "ada", "customSubjects")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["Latin"]`, v)

	_, ok, err = s.GetPref(ctx, "bob", "customSubjects")
	require.NoError(t, err)
	assert.False(t, ok)
}
