package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "studycal/internal/log"
	"studycal/internal/model"
)

const (
	defaultMaxOccurrencesPerTask = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerTask caps a single task's expansion. If zero,
	// defaultMaxOccurrencesPerTask is used.
	MaxOccurrencesPerTask int
}

// ExpandResult wraps the expanded occurrences and the tasks that hit the cap.
type ExpandResult struct {
	Occurrences    []model.Occurrence
	TruncatedTasks []string
}

// ExpandTasks turns tasks into concrete occurrences within the range.
//
//   - Non-repeating tasks yield one occurrence if [StartDate, EndDate]
//     overlaps the range.
//   - Repeating tasks are expanded from their Repeat RRULE with DTSTART at
//     StartDate; every occurrence keeps the task's duration.
func ExpandTasks(tasks []model.Task, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerTask <= 0 {
		cfg.MaxOccurrencesPerTask = defaultMaxOccurrencesPerTask
	}

	result.Occurrences = make([]model.Occurrence, 0, len(tasks))
	for _, t := range tasks {
		if t.Repeat.RRule() == "" {
			if timeRangesOverlap(t.StartDate, t.EndDate, cfg.RangeStart, cfg.RangeEnd) {
				result.Occurrences = append(result.Occurrences, makeOccurrence(t, t.StartDate, t.EndDate, cfg.DisplayLocation))
			}
			continue
		}

		occ, hitCap := expandRepeatingTask(t, cfg)
		result.Occurrences = append(result.Occurrences, occ...)
		if hitCap {
			result.TruncatedTasks = append(result.TruncatedTasks, t.ID)
			appLog.Error("expand: truncated occurrences for task due to cap",
				errors.New("max occurrences reached"),
				"task_id", t.ID,
				"cap", cfg.MaxOccurrencesPerTask,
			)
		}
	}

	return result, nil
}

func expandRepeatingTask(t model.Task, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)

	r, err := rrule.StrToRRule(t.Repeat.RRule())
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "task_id", t.ID, "repeat", string(t.Repeat))
		return out, false
	}
	r.DTStart(t.StartDate)

	dur := t.EndDate.Sub(t.StartDate)
	if dur < 0 {
		dur = 0
	}

	// Occurrences that started before the window but are still running
	// count as well, so widen the lower bound by the task's duration.
	rangeStart := cfg.RangeStart.Add(-dur).In(t.StartDate.Location())
	rangeEnd := cfg.RangeEnd.In(t.StartDate.Location())

	starts := r.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerTask {
		starts = starts[:cfg.MaxOccurrencesPerTask]
		hitCap = true
	}

	for _, s := range starts {
		out = append(out, makeOccurrence(t, s, s.Add(dur), cfg.DisplayLocation))
	}
	return out, hitCap
}

func makeOccurrence(t model.Task, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	return model.Occurrence{
		TaskID:      t.ID,
		Title:       t.Title,
		InstanceKey: startLocal.Format(time.RFC3339Nano),
		Completed:   t.Completed,
		Start:       startLocal,
		End:         end.In(displayLoc),
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
