// Package export writes the chart in formats other tools read.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/nibzard/timeblock/internal/task"
)

const (
	icsLocalLayout = "20060102T150405"
	icsStampLayout = "20060102T150405Z"
	// icsLineLimit is the content line length in octets before folding.
	icsLineLimit = 75
)

// BuildCalendar builds an iCalendar document with one event per task.
// Event times are floating local times, matching how tasks are entered.
func BuildCalendar(tasks []task.Task, now time.Time) string {
	names := make(map[string]string, len(tasks))
	for _, t := range tasks {
		names[t.ID] = t.Name
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//timeblock//Chart Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}
	stamp := now.UTC().Format(icsStampLayout)
	for _, t := range tasks {
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+escapeICSText(t.ID+"@timeblock"),
			"DTSTAMP:"+stamp,
			"SUMMARY:"+escapeICSText(t.Name),
			"DTSTART:"+t.Start.Format(icsLocalLayout),
			"DTEND:"+t.End.Format(icsLocalLayout),
			"DESCRIPTION:"+escapeICSText(describe(t, names)),
		)
		if t.CustomClass != "" {
			lines = append(lines, "CATEGORIES:"+escapeICSText(t.CustomClass))
		}
		for _, dep := range t.Dependencies {
			if _, ok := names[dep]; ok {
				lines = append(lines, "RELATED-TO;RELTYPE=PARENT:"+escapeICSText(dep+"@timeblock"))
			}
		}
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR", "")

	for i, l := range lines {
		lines[i] = foldLine(l)
	}
	return strings.Join(lines, "\r\n")
}

// describe renders progress, prerequisites and the task's own description.
// Prerequisites that are not in tasks are listed by id.
func describe(t task.Task, names map[string]string) string {
	parts := []string{fmt.Sprintf("Progress: %d%%", t.Progress)}
	if len(t.Dependencies) > 0 {
		labels := make([]string, 0, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			if name, ok := names[dep]; ok {
				labels = append(labels, name)
			} else {
				labels = append(labels, dep)
			}
		}
		parts = append(parts, "After: "+strings.Join(labels, ", "))
	}
	if d := strings.TrimSpace(t.Description); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, "\n")
}

func escapeICSText(s string) string {
	repl := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
		"\r", "\\n",
	)
	return repl.Replace(s)
}

// foldLine splits a content line into 75-octet chunks joined by CRLF and a
// space, never inside a UTF-8 sequence.
func foldLine(line string) string {
	if len(line) <= icsLineLimit {
		return line
	}
	var b strings.Builder
	limit := icsLineLimit
	width := 0
	for _, r := range line {
		n := len(string(r))
		if width+n > limit {
			b.WriteString("\r\n ")
			width = 0
			// Continuation lines carry the leading space.
			limit = icsLineLimit - 1
		}
		b.WriteRune(r)
		width += n
	}
	return b.String()
}
