// Package task holds the authoritative collection of scheduled tasks.
//
// A task is a named time block with a progress value and a set of
// prerequisite task ids. The Store validates every mutation, keeps the
// dependency graph acyclic, and removes references to deleted tasks.
package task

import (
	"time"

	"github.com/nibzard/timeblock/internal/timeval"
)

const (
	MinProgress = 0
	MaxProgress = 100
)

// Task is a committed task. Start and End carry minute precision in the
// local wall clock; End is always after Start.
type Task struct {
	ID           string
	Name         string
	Start        time.Time
	End          time.Time
	Progress     int
	Dependencies DependencySet
	Description  string
	CustomClass  string
}

// Duration returns End - Start.
func (t Task) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Done reports whether the task is complete.
func (t Task) Done() bool {
	return t.Progress >= MaxProgress
}

// Record converts the task to its wire form.
func (t Task) Record() Record {
	return Record{
		ID:           t.ID,
		Name:         t.Name,
		Start:        timeval.Format(t.Start),
		End:          timeval.Format(t.End),
		Progress:     t.Progress,
		Dependencies: t.Dependencies.Clone(),
		Description:  t.Description,
		CustomClass:  t.CustomClass,
	}
}

func (t Task) clone() Task {
	t.Dependencies = t.Dependencies.Clone()
	return t
}

// Record is the wire form of a task used by renderers, snapshots, and
// import files. Temporal fields use the canonical "YYYY-MM-DD HH:mm" form.
type Record struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Start        string        `json:"start" yaml:"start"`
	End          string        `json:"end" yaml:"end"`
	Progress     int           `json:"progress" yaml:"progress"`
	Dependencies DependencySet `json:"dependencies" yaml:"dependencies"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	CustomClass  string        `json:"custom_class,omitempty" yaml:"custom_class,omitempty"`
}

// Draft is the input to Store.Add. ID is optional; Progress defaults to 0.
type Draft struct {
	ID           string
	Name         string
	Start        string
	End          string
	Progress     *int
	Dependencies DependencySet
	Description  string
	CustomClass  string
}

// DraftFromRecord converts a wire record into a Draft.
func DraftFromRecord(r Record) Draft {
	progress := r.Progress
	return Draft{
		ID:           r.ID,
		Name:         r.Name,
		Start:        r.Start,
		End:          r.End,
		Progress:     &progress,
		Dependencies: r.Dependencies,
		Description:  r.Description,
		CustomClass:  r.CustomClass,
	}
}

// Patch is a partial update. A nil field leaves the stored value unchanged.
type Patch struct {
	Name         *string
	Start        *string
	End          *string
	Progress     *int
	Dependencies *DependencySet
	Description  *string
	CustomClass  *string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Name == nil && p.Start == nil && p.End == nil && p.Progress == nil &&
		p.Dependencies == nil && p.Description == nil && p.CustomClass == nil
}

// fields is the string-level view of a task that validation operates on.
type fields struct {
	id           string
	name         string
	start        string
	end          string
	progress     int
	dependencies DependencySet
	description  string
	customClass  string
}

func fieldsFromDraft(d Draft) fields {
	f := fields{
		id:           d.ID,
		name:         d.Name,
		start:        d.Start,
		end:          d.End,
		dependencies: NewDependencySet(d.Dependencies...),
		description:  d.Description,
		customClass:  d.CustomClass,
	}
	if d.Progress != nil {
		f.progress = *d.Progress
	}
	return f
}

func fieldsFromTask(t Task) fields {
	return fields{
		id:           t.ID,
		name:         t.Name,
		start:        timeval.Format(t.Start),
		end:          timeval.Format(t.End),
		progress:     t.Progress,
		dependencies: t.Dependencies.Clone(),
		description:  t.Description,
		customClass:  t.CustomClass,
	}
}

func (f fields) apply(p Patch) fields {
	if p.Name != nil {
		f.name = *p.Name
	}
	if p.Start != nil {
		f.start = *p.Start
	}
	if p.End != nil {
		f.end = *p.End
	}
	if p.Progress != nil {
		f.progress = *p.Progress
	}
	if p.Dependencies != nil {
		f.dependencies = NewDependencySet(*p.Dependencies...)
	}
	if p.Description != nil {
		f.description = *p.Description
	}
	if p.CustomClass != nil {
		f.customClass = *p.CustomClass
	}
	return f
}
