package timeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultColumnWidth is the width of one column in terminal cells.
const DefaultColumnWidth = 6

// ViewMode is the time-scale strategy handed to a renderer. It carries the
// column step, the label functions for both header tiers, and the predicate
// that marks coarse boundaries.
type ViewMode struct {
	Name        string
	Step        time.Duration
	ColumnWidth int
	// UpperEvery is the number of columns between coarse labels.
	UpperEvery int
	Upper      func(time.Time) string
	Lower      func(time.Time) string
	Boundary   func(time.Time) bool
}

// Validate checks that the mode can partition an hour-aligned window.
func (m ViewMode) Validate() error {
	if m.Step <= 0 {
		return fmt.Errorf("view mode %q: step must be positive, got %s", m.Name, m.Step)
	}
	if m.Step < time.Hour && time.Hour%m.Step != 0 {
		return fmt.Errorf("view mode %q: step %s does not divide an hour", m.Name, m.Step)
	}
	if m.Step >= time.Hour && m.Step%time.Hour != 0 {
		return fmt.Errorf("view mode %q: step %s is not a whole number of hours", m.Name, m.Step)
	}
	if m.ColumnWidth <= 0 {
		return fmt.Errorf("view mode %q: column width must be positive", m.Name)
	}
	if m.Upper == nil || m.Lower == nil || m.Boundary == nil {
		return fmt.Errorf("view mode %q: label and boundary functions are required", m.Name)
	}
	return nil
}

// WithColumnWidth returns a copy of m using width cells per column.
func (m ViewMode) WithColumnWidth(width int) ViewMode {
	if width > 0 {
		m.ColumnWidth = width
	}
	return m
}

// FifteenMinute is the default mode: quarter-hour columns, an hour label on
// every fourth column, and a minute marker on each.
func FifteenMinute() ViewMode {
	mode, _ := MinuteMode(15 * time.Minute)
	return mode
}

// MinuteMode builds a sub-hour mode. step must divide an hour evenly.
func MinuteMode(step time.Duration) (ViewMode, error) {
	if step <= 0 || step >= time.Hour || time.Hour%step != 0 || step%time.Minute != 0 {
		return ViewMode{}, fmt.Errorf("minute step must divide an hour into whole minutes, got %s", step)
	}
	return ViewMode{
		Name:        fmt.Sprintf("%d-Minute", int(step/time.Minute)),
		Step:        step,
		ColumnWidth: DefaultColumnWidth,
		UpperEvery:  int(time.Hour / step),
		Upper:       hourLabel,
		Lower:       minuteLabel,
		Boundary:    onHour,
	}, nil
}

// Hourly shows one column per hour with a date label at each midnight.
func Hourly() ViewMode {
	return ViewMode{
		Name:        "Hour",
		Step:        time.Hour,
		ColumnWidth: DefaultColumnWidth,
		UpperEvery:  24,
		Upper:       func(t time.Time) string { return t.Format("Mon Jan 2") },
		Lower:       func(t time.Time) string { return t.Format("3 PM") },
		Boundary:    func(t time.Time) bool { return t.Hour() == 0 && t.Minute() == 0 },
	}
}

// ModeForGranularity maps a column size in minutes to a view mode.
func ModeForGranularity(minutes int) (ViewMode, error) {
	if minutes == 60 {
		return Hourly(), nil
	}
	return MinuteMode(time.Duration(minutes) * time.Minute)
}

// ModeByName resolves a mode name as produced by ViewMode.Name.
func ModeByName(name string) (ViewMode, error) {
	if name == "" {
		return FifteenMinute(), nil
	}
	if name == Hourly().Name {
		return Hourly(), nil
	}
	if n, ok := strings.CutSuffix(name, "-Minute"); ok {
		minutes, err := strconv.Atoi(n)
		if err == nil {
			return ModeForGranularity(minutes)
		}
	}
	return ViewMode{}, fmt.Errorf("unknown view mode %q", name)
}

// hourLabel renders "9:00 AM" at the top of each hour.
func hourLabel(t time.Time) string {
	if t.Minute() != 0 {
		return ""
	}
	return t.Format("3:04 PM")
}

func minuteLabel(t time.Time) string {
	return fmt.Sprintf(":%02d", t.Minute())
}

func onHour(t time.Time) bool {
	return t.Minute() == 0
}
