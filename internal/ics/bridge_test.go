package ics

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/apperr"
	"studycal/internal/model"
)

const twoEvents = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:midterm-1@example.edu
DTSTAMP:20240201T120000Z
DTSTART:20240301T090000Z
DTEND:20240301T110000Z
SUMMARY:Midterm
DESCRIPTION:Bring a calculator
END:VEVENT
BEGIN:VEVENT
UID:quiz-1@example.edu
DTSTAMP:20240201T120000Z
DTSTART:20240305T140000Z
DTEND:20240305T150000Z
SUMMARY:Quiz
END:VEVENT
END:VCALENDAR
`

func seqIDs() IDGenerator {
	n := 0
	return IDFunc(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func testBridge() *Bridge {
	return &Bridge{
		IDs:    seqIDs(),
		Colors: ColorFunc(func() string { return "#123456" }),
		Now:    func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestImportTwoEvents(t *testing.T) {
	res, err := testBridge().Import("Spring Term.ics", []byte(twoEvents))
	require.NoError(t, err)

	assert.Equal(t, model.Calendar{ID: "id-1", Name: "Spring Term", Color: "#123456"}, res.Calendar)
	require.Len(t, res.Events, 2)

	mid := res.Events[0]
	assert.Equal(t, "midterm-1@example.edu", mid.ID)
	assert.Equal(t, "Midterm", mid.Title)
	assert.Equal(t, "Bring a calculator", mid.Description)
	assert.True(t, mid.Start.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, mid.End.Equal(time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)))

	quiz := res.Events[1]
	assert.Equal(t, "Quiz", quiz.Title)
	assert.Empty(t, quiz.Description)
	assert.True(t, quiz.Start.Equal(time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)))

	for _, ev := range res.Events {
		assert.Equal(t, "id-1", ev.CalendarID)
		assert.Equal(t, "Spring Term", ev.CalendarName)
	}
}

func TestImportGeneratesMissingUIDAndEnd(t *testing.T) {
	body := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
DTSTART:20240310T080000Z
SUMMARY:Office hours
END:VEVENT
END:VCALENDAR
`
	res, err := testBridge().Import("office.ics", []byte(body))
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	ev := res.Events[0]
	assert.Equal(t, "id-2", ev.ID) // id-1 went to the calendar grouping
	assert.True(t, ev.End.Equal(ev.Start))
}

func TestImportPinsDateAndFloatingTimes(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	local := time.Local
	time.Local = time.UTC
	t.Cleanup(func() { time.Local = local })

	body := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:holiday
DTSTART;VALUE=DATE:20240301
DTEND;VALUE=DATE:20240302
SUMMARY:Holiday
END:VEVENT
BEGIN:VEVENT
UID:lecture
DTSTART:20240304T090000
DTEND:20240304T103000
SUMMARY:Lecture
END:VEVENT
BEGIN:VEVENT
UID:exam
DTSTART:20240305T140000Z
SUMMARY:Exam
END:VEVENT
BEGIN:VEVENT
UID:seminar
DTSTART;TZID=Europe/Berlin:20240306T100000
SUMMARY:Seminar
END:VEVENT
END:VCALENDAR
`
	b := testBridge()
	b.Location = ny
	res, err := b.Import("term.ics", []byte(body))
	require.NoError(t, err)
	require.Len(t, res.Events, 4)

	holiday := res.Events[0]
	assert.True(t, holiday.Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, ny)), holiday.Start)
	assert.True(t, holiday.End.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, ny)), holiday.End)

	lecture := res.Events[1]
	assert.True(t, lecture.Start.Equal(time.Date(2024, 3, 4, 9, 0, 0, 0, ny)), lecture.Start)
	assert.True(t, lecture.End.Equal(time.Date(2024, 3, 4, 10, 30, 0, 0, ny)), lecture.End)

	exam := res.Events[2]
	assert.True(t, exam.Start.Equal(time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)), exam.Start)

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	seminar := res.Events[3]
	assert.True(t, seminar.Start.Equal(time.Date(2024, 3, 6, 10, 0, 0, 0, berlin)), seminar.Start)
}

func TestImportRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":      "",
		"whitespace": "  \n\t",
		"plain text": "these are my lecture notes\nnot a calendar",
		"no dtstart": "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:x\r\nSUMMARY:broken\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := testBridge().Import("bad.ics", []byte(body))
			require.Error(t, err)
			assert.True(t, apperr.IsParse(err), "got %v", err)
			assert.Empty(t, res.Events)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	events := []model.CalendarEvent{
		{ID: "a", Title: "Midterm", Description: "Chapters one to four",
			Start: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)},
		{ID: "b", Title: "Quiz", Description: "Short quiz",
			Start: time.Date(2024, 3, 5, 14, 0, 0, 0, time.FixedZone("EST", -5*60*60)), End: time.Date(2024, 3, 5, 15, 0, 0, 0, time.FixedZone("EST", -5*60*60))},
	}
	b := testBridge()

	text := b.Export(events, "Spring Term")
	res, err := b.Import(ExportFileName("Spring Term"), []byte(text))
	require.NoError(t, err)
	require.Len(t, res.Events, len(events))

	for i, want := range events {
		got := res.Events[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Description, got.Description)
		assert.True(t, want.Start.Equal(got.Start), "start %v != %v", want.Start, got.Start)
		assert.True(t, want.End.Equal(got.End), "end %v != %v", want.End, got.End)
	}
	assert.Equal(t, "Spring Term", res.Calendar.Name)
}

func TestExportFormat(t *testing.T) {
	text := testBridge().Export([]model.CalendarEvent{{
		ID:    "ev-1",
		Title: "Lab",
		Start: time.Date(2024, 4, 2, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 4, 2, 15, 30, 0, 0, time.UTC),
	}}, "Chemistry")

	assert.Contains(t, text, "BEGIN:VCALENDAR")
	assert.Contains(t, text, "PRODID:"+ProductID)
	assert.Contains(t, text, "VERSION:2.0")
	assert.Contains(t, text, "X-WR-CALNAME:Chemistry")
	assert.Contains(t, text, "UID:ev-1")
	assert.Contains(t, text, "SUMMARY:Lab")
	assert.Contains(t, text, "DTSTART:20240402T130000Z")
	assert.Contains(t, text, "DTEND:20240402T153000Z")
	assert.NotContains(t, text, "DESCRIPTION")
	assert.Equal(t, 1, strings.Count(text, "BEGIN:VEVENT"))
}

func TestCalendarName(t *testing.T) {
	tests := map[string]string{
		"Spring Term.ics":        "Spring Term",
		"/tmp/uploads/cs101.ics": "cs101",
		`C:\Users\me\math.ICS`:   "math",
		"noext":                  "noext",
		"":                       DefaultImportName,
		".ics":                   DefaultImportName,
	}
	for in, want := range tests {
		assert.Equal(t, want, CalendarName(in), in)
	}
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "Spring Term.ics", ExportFileName("Spring Term"))
	assert.Equal(t, "ab.ics", ExportFileName("a/b"))
	assert.Equal(t, "calendar.ics", ExportFileName("  "))
}

func TestDefaultGenerators(t *testing.T) {
	b := NewBridge()
	assert.NotEqual(t, b.IDs.NewID(), b.IDs.NewID())
	assert.Regexp(t, `^#[0-9a-f]{6}$`, b.Colors.NewColor())
}
