// Package timeval parses, formats, and compares the minute-precision
// date-time strings used throughout the chart ("YYYY-MM-DD HH:mm").
//
// All values are interpreted in the local wall clock of the running process.
// No timezone conversion is performed; a value that falls into a daylight
// saving gap is normalized by the time package and will not round-trip.
package timeval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical date-time layout.
const Layout = "2006-01-02 15:04"

// DateLayout is the date-only layout accepted by ParseDate.
const DateLayout = "2006-01-02"

// ErrMalformed is matched by every MalformedError via errors.Is.
var ErrMalformed = errors.New("malformed temporal value")

// MalformedError reports a value that is not a canonical date-time string.
type MalformedError struct {
	Value  string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", ErrMalformed, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", ErrMalformed, e.Value, e.Reason)
}

// Is reports whether target is ErrMalformed.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// Parse parses a canonical "YYYY-MM-DD HH:mm" string in the local time zone.
func Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &MalformedError{Value: s, Reason: "empty value"}
	}
	datePart, timePart, ok := strings.Cut(s, " ")
	if !ok {
		return time.Time{}, &MalformedError{Value: s, Reason: "missing separator between date and time"}
	}
	if err := checkFields(s, datePart, "-", []int{4, 2, 2}); err != nil {
		return time.Time{}, err
	}
	if err := checkFields(s, timePart, ":", []int{2, 2}); err != nil {
		return time.Time{}, err
	}

	t, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		return time.Time{}, &MalformedError{Value: s, Reason: rangeReason(err)}
	}
	return t, nil
}

// MustParse is like Parse but panics on malformed input.
// It is intended for fixtures with known-good literals.
func MustParse(s string) time.Time {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a "YYYY-MM-DD" string and returns the start of that day.
func ParseDate(s string) (time.Time, error) {
	if err := checkFields(s, s, "-", []int{4, 2, 2}); err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, &MalformedError{Value: s, Reason: rangeReason(err)}
	}
	return t, nil
}

// Format renders t in the canonical layout, dropping seconds.
func Format(t time.Time) string {
	return t.In(time.Local).Format(Layout)
}

// FormatDate renders the date part of t.
func FormatDate(t time.Time) string {
	return t.In(time.Local).Format(DateLayout)
}

// Compare returns -1, 0, or +1 depending on whether a is before, equal to,
// or after b.
func Compare(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// Truncate drops seconds and sub-second precision from t.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// Today returns the date part of now as "YYYY-MM-DD".
func Today(now time.Time) string {
	return FormatDate(now)
}

// TodayAt returns the canonical string for hour:minute on the day of now.
func TodayAt(now time.Time, hour, minute int) string {
	return fmt.Sprintf("%s %02d:%02d", Today(now), hour, minute)
}

// checkFields verifies that part splits on sep into all-digit fields of the
// given widths.
func checkFields(value, part, sep string, widths []int) error {
	fields := strings.Split(part, sep)
	if len(fields) != len(widths) {
		return &MalformedError{
			Value:  value,
			Reason: fmt.Sprintf("expected %d %q-separated fields in %q, got %d", len(widths), sep, part, len(fields)),
		}
	}
	for i, f := range fields {
		if len(f) != widths[i] {
			return &MalformedError{
				Value:  value,
				Reason: fmt.Sprintf("field %q must have %d digits", f, widths[i]),
			}
		}
		for j := 0; j < len(f); j++ {
			if f[j] < '0' || f[j] > '9' {
				return &MalformedError{
					Value:  value,
					Reason: fmt.Sprintf("field %q is not numeric", f),
				}
			}
		}
	}
	return nil
}

func rangeReason(err error) string {
	var pe *time.ParseError
	if errors.As(err, &pe) && pe.Message != "" {
		return strings.TrimPrefix(pe.Message, ": ")
	}
	return "component out of range"
}
