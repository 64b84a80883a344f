package model

import (
	"strings"
	"time"
)

// CalendarEvent is a single event owned by a user and tagged with the
// calendar grouping it was created or imported into.
type CalendarEvent struct {
	ID           string    `json:"id" bson:"id"`
	Title        string    `json:"title" bson:"title"`
	Start        time.Time `json:"start" bson:"start"`
	End          time.Time `json:"end" bson:"end"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	CalendarID   string    `json:"calendarId" bson:"calendarId"`
	CalendarName string    `json:"calendarName" bson:"calendarName"`
}

// Calendar is a grouping of events imported together (or the default
// grouping for manually created events).
type Calendar struct {
	ID    string `json:"id" bson:"id"`
	Name  string `json:"name" bson:"name"`
	Color string `json:"color" bson:"color"`
}

const (
	DefaultCalendarID    = "personal"
	DefaultCalendarName  = "My Calendar"
	DefaultCalendarColor = "#6B7280"
)

// EventUpdate is a partial update. Nil fields are left untouched.
type EventUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Description *string    `json:"description,omitempty"`
}

func (u EventUpdate) Empty() bool {
	return u.Title == nil && u.Start == nil && u.End == nil && u.Description == nil
}

// Apply returns ev with the non-nil fields of u applied.
func (u EventUpdate) Apply(ev CalendarEvent) CalendarEvent {
	if u.Title != nil {
		ev.Title = *u.Title
	}
	if u.Start != nil {
		ev.Start = *u.Start
	}
	if u.End != nil {
		ev.End = *u.End
	}
	if u.Description != nil {
		ev.Description = *u.Description
	}
	return ev
}

// Repeat is the recurrence option a task can carry.
type Repeat string

const (
	RepeatNone     Repeat = "none"
	RepeatWeekly   Repeat = "weekly"
	RepeatBiweekly Repeat = "biweekly"
	RepeatMonthly  Repeat = "monthly"
	RepeatAnnually Repeat = "annually"
)

func (r Repeat) Valid() bool {
	switch r {
	case RepeatNone, RepeatWeekly, RepeatBiweekly, RepeatMonthly, RepeatAnnually:
		return true
	}
	return false
}

// RRule returns the RFC 5545 recurrence rule for r, without the "RRULE:"
// prefix. It is empty for RepeatNone and unknown values.
func (r Repeat) RRule() string {
	switch r {
	case RepeatWeekly:
		return "FREQ=WEEKLY"
	case RepeatBiweekly:
		return "FREQ=WEEKLY;INTERVAL=2"
	case RepeatMonthly:
		return "FREQ=MONTHLY"
	case RepeatAnnually:
		return "FREQ=YEARLY"
	default:
		return ""
	}
}

// DefaultTaskTypes are always offered; users may add their own through
// preferences.
var DefaultTaskTypes = []string{"Assignment", "Exam", "Quiz", "Project", "Reading", "Other"}

// Task is a to-do item.
type Task struct {
	ID        string    `json:"id" bson:"id"`
	Title     string    `json:"title" bson:"title"`
	Completed bool      `json:"completed" bson:"completed"`
	StartDate time.Time `json:"startDate" bson:"startDate"`
	EndDate   time.Time `json:"endDate" bson:"endDate"`
	TaskType  string    `json:"taskType" bson:"taskType"`
	Subject   string    `json:"subject" bson:"subject"`
	Repeat    Repeat    `json:"repeat" bson:"repeat"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UserID    string    `json:"userId" bson:"userId"`
}

// Normalize trims text fields and defaults Repeat.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Subject = strings.TrimSpace(t.Subject)
	t.TaskType = strings.TrimSpace(t.TaskType)
	if t.Repeat == "" {
		t.Repeat = RepeatNone
	}
}

// Overdue reports whether the task is past its end date and not completed.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && now.After(t.EndDate)
}

// TaskUpdate is a partial task update. Nil fields are left untouched.
type TaskUpdate struct {
	Title     *string    `json:"title,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	TaskType  *string    `json:"taskType,omitempty"`
	Subject   *string    `json:"subject,omitempty"`
	Repeat    *Repeat    `json:"repeat,omitempty"`
}

func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Completed == nil && u.StartDate == nil && u.EndDate == nil &&
		u.TaskType == nil && u.Subject == nil && u.Repeat == nil
}

func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	if u.StartDate != nil {
		t.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		t.EndDate = *u.EndDate
	}
	if u.TaskType != nil {
		t.TaskType = *u.TaskType
	}
	if u.Subject != nil {
		t.Subject = *u.Subject
	}
	if u.Repeat != nil {
		t.Repeat = *u.Repeat
	}
	t.Normalize()
	return t
}

// Occurrence represents a single concrete instance of a task
// (after recurrence expansion).
type Occurrence struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`

	// InstanceKey uniquely identifies one occurrence of a repeating task,
	// derived from its start time.
	InstanceKey string `json:"instanceKey"`

	Completed bool      `json:"completed"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}
