package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nibzard/timeblock/internal/timeval"
)

// ErrNotFound is returned when an operation names a task id that is not in
// the store.
var ErrNotFound = errors.New("task not found")

// Field-level failure causes.
var (
	ErrRequired      = errors.New("required")
	ErrEndNotAfter   = errors.New("end time must be after start time")
	ErrProgressRange = fmt.Errorf("must be between %d and %d", MinProgress, MaxProgress)
	ErrDuplicateID   = errors.New("id already exists")
	ErrRetiredID     = errors.New("id belonged to a deleted task")
)

// FieldError is a validation failure for a single field.
type FieldError struct {
	Field string // e.g. "end" or "tasks[2].start"
	Err   error
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidationError enumerates every failing field of a rejected task.
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "invalid task: " + strings.Join(parts, "; ")
}

// Unwrap exposes the field errors to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Fields))
	for _, f := range e.Fields {
		errs = append(errs, f)
	}
	return errs
}

// Field returns the error recorded for name, or nil.
func (e *ValidationError) Field(name string) *FieldError {
	for _, f := range e.Fields {
		if f.Field == name {
			return f
		}
	}
	return nil
}

func (e *ValidationError) add(field string, err error) {
	e.Fields = append(e.Fields, &FieldError{Field: field, Err: err})
}

func (e *ValidationError) prefixed(prefix string) []*FieldError {
	out := make([]*FieldError, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, &FieldError{Field: prefix + "." + f.Field, Err: f.Err})
	}
	return out
}

// build validates f and converts it into a Task. The id must already be set.
func build(f fields) (Task, *ValidationError) {
	verr := &ValidationError{}

	name := strings.TrimSpace(f.name)
	if name == "" {
		verr.add("name", ErrRequired)
	}

	start, startOK := parseField(verr, "start", f.start)
	end, endOK := parseField(verr, "end", f.end)
	if startOK && endOK && !end.After(start) {
		verr.add("end", ErrEndNotAfter)
	}

	if f.progress < MinProgress || f.progress > MaxProgress {
		verr.add("progress", fmt.Errorf("%w, got %d", ErrProgressRange, f.progress))
	}

	if len(verr.Fields) > 0 {
		return Task{}, verr
	}
	return Task{
		ID:           f.id,
		Name:         name,
		Start:        start,
		End:          end,
		Progress:     f.progress,
		Dependencies: f.dependencies,
		Description:  f.description,
		CustomClass:  f.customClass,
	}, nil
}

func parseField(verr *ValidationError, field, value string) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		verr.add(field, ErrRequired)
		return time.Time{}, false
	}
	parsed, err := timeval.Parse(value)
	if err != nil {
		verr.add(field, err)
		return time.Time{}, false
	}
	return parsed, true
}
