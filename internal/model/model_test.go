package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRepeatRRule(t *testing.T) {
	tests := map[Repeat]string{
		RepeatNone:      "",
		RepeatWeekly:    "FREQ=WEEKLY",
		RepeatBiweekly:  "FREQ=WEEKLY;INTERVAL=2",
		RepeatMonthly:   "FREQ=MONTHLY",
		RepeatAnnually:  "FREQ=YEARLY",
		Repeat("daily"): "",
	}
	for r, want := range tests {
		assert.Equal(t, want, r.RRule(), string(r))
	}
	assert.False(t, Repeat("daily").Valid())
	assert.True(t, RepeatBiweekly.Valid())
}

func TestEventUpdateApply(t *testing.T) {
	ev := CalendarEvent{ID: "1", Title: "Midterm", Description: "room 4"}
	title := "Final"
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	u := EventUpdate{Title: &title, Start: &start}
	assert.False(t, u.Empty())

	got := u.Apply(ev)
	assert.Equal(t, "Final", got.Title)
	assert.Equal(t, start, got.Start)
	assert.Equal(t, "room 4", got.Description)
	assert.True(t, EventUpdate{}.Empty())
}

func TestTaskNormalizeAndOverdue(t *testing.T) {
	task := Task{Title: "  Essay ", Subject: " History  ", EndDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	task.Normalize()

	assert.Equal(t, "Essay", task.Title)
	assert.Equal(t, "History", task.Subject)
	assert.Equal(t, RepeatNone, task.Repeat)

	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.True(t, task.Overdue(now))
	task.Completed = true
	assert.False(t, task.Overdue(now))
}

func TestTaskUpdateApply(t *testing.T) {
	done := true
	r := RepeatMonthly
	got := TaskUpdate{Completed: &done, Repeat: &r}.Apply(Task{Title: "Lab"})

	assert.True(t, got.Completed)
	assert.Equal(t, RepeatMonthly, got.Repeat)
	assert.Equal(t, "Lab", got.Title)
}
