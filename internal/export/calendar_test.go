package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibzard/timeblock/internal/task"
	"github.com/nibzard/timeblock/internal/timeval"
)

func sample() []task.Task {
	return []task.Task{
		{ID: "task-1", Name: "Morning Standup", Start: timeval.MustParse("2024-01-15 09:00"), End: timeval.MustParse("2024-01-15 09:15"), Progress: 100},
		{ID: "task-2", Name: "Deep Work; focus, no chat", Start: timeval.MustParse("2024-01-15 09:15"), End: timeval.MustParse("2024-01-15 10:30"), Progress: 75,
			Dependencies: task.DependencySet{"task-1", "ghost"}, Description: "line one\nline two", CustomClass: "focus"},
	}
}

func TestBuildCalendar(t *testing.T) {
	now := time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC)
	ics := BuildCalendar(sample(), now)

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"UID:task-1@timeblock\r\n",
		"DTSTAMP:20240114T120000Z\r\n",
		"DTSTART:20240115T091500\r\n",
		"DTEND:20240115T103000\r\n",
		`SUMMARY:Deep Work\; focus\, no chat` + "\r\n",
		"CATEGORIES:focus\r\n",
		"RELATED-TO;RELTYPE=PARENT:task-1@timeblock\r\n",
		"END:VCALENDAR\r\n",
	} {
		assert.Contains(t, ics, want)
	}
	assert.Equal(t, 2, strings.Count(ics, "BEGIN:VEVENT"), "one event per task")
	assert.NotContains(t, ics, "RELATED-TO;RELTYPE=PARENT:ghost", "dangling prerequisite exported as a relation")

	unfolded := strings.ReplaceAll(ics, "\r\n ", "")
	assert.Contains(t, unfolded, `DESCRIPTION:Progress: 75%\nAfter: Morning Standup\, ghost\nline one\nline two`)
	assert.NotContains(t, strings.ReplaceAll(ics, "\r\n", ""), "\n", "bare LF in output")
}

func TestBuildCalendarEmpty(t *testing.T) {
	ics := BuildCalendar(nil, time.Now())
	assert.NotContains(t, ics, "VEVENT")
	assert.True(t, strings.HasSuffix(ics, "END:VCALENDAR\r\n"))
}

func TestFoldLine(t *testing.T) {
	long := "SUMMARY:" + strings.Repeat("é", 60)
	folded := foldLine(long)

	lines := strings.Split(folded, "\r\n")
	require.Greater(t, len(lines), 1, "long line was not folded")
	for i, line := range lines {
		assert.LessOrEqual(t, len(line), icsLineLimit, "line %d", i)
		if i > 0 {
			assert.True(t, strings.HasPrefix(line, " "), "continuation line %d lacks the leading space", i)
		}
	}
	assert.Equal(t, long, strings.ReplaceAll(folded, "\r\n ", ""))
	assert.Equal(t, "SHORT:x", foldLine("SHORT:x"))
}
