// Package timeline derives the visible time window, column grid and row
// layout that a renderer draws for a set of tasks.
package timeline

import (
	"errors"
	"time"

	"github.com/nibzard/timeblock/internal/task"
)

// ErrNoAnchor is returned by Project for an empty task set without Options.Now.
var ErrNoAnchor = errors.New("timeline: no tasks and no anchor time")

// DefaultMaxColumns bounds the column grid of a single projection.
const DefaultMaxColumns = 1000

// Padding is the margin added around the tasks' temporal extent before the
// window is rounded outward to whole hours.
type Padding struct {
	LeadIn   time.Duration
	TrailOut time.Duration
}

// DefaultPadding is one hour before the earliest start and two after the
// latest end.
func DefaultPadding() Padding {
	return Padding{LeadIn: time.Hour, TrailOut: 2 * time.Hour}
}

// Options configures Project. Zero values select the defaults.
type Options struct {
	Mode       ViewMode
	Padding    *Padding
	MaxColumns int
	// Now anchors the window when there are no tasks. It is required in
	// that case.
	Now time.Time
}

// Column is one step of the grid.
type Column struct {
	Index    int
	Start    time.Time
	Upper    string
	Lower    string
	Boundary bool
}

// Row places one task on the grid. Offset and Span are measured in columns
// from the window start.
type Row struct {
	ID           string
	Name         string
	Start        time.Time
	End          time.Time
	Progress     int
	CustomClass  string
	Offset       float64
	Span         float64
	Dependencies []task.DependencyLabel
}

// Dangling returns the ids of prerequisites that did not resolve.
func (r Row) Dangling() []string {
	var out []string
	for _, d := range r.Dependencies {
		if !d.Resolved {
			out = append(out, d.ID)
		}
	}
	return out
}

// Projection is the renderer input derived from a task set.
type Projection struct {
	Mode      ViewMode
	Start     time.Time
	End       time.Time
	Columns   []Column
	Rows      []Row
	Truncated bool
}

// Width returns the grid width in renderer units.
func (p *Projection) Width() int {
	return len(p.Columns) * p.Mode.ColumnWidth
}

// ColumnOf returns the fractional column position of t.
func (p *Projection) ColumnOf(t time.Time) float64 {
	return float64(t.Sub(p.Start)) / float64(p.Mode.Step)
}

// Project computes the view window and grid for tasks. It is a pure function
// of its arguments and never modifies the tasks; it never reads the clock.
func Project(tasks []task.Task, opts Options) (*Projection, error) {
	mode := opts.Mode
	if mode.Step == 0 {
		mode = FifteenMinute()
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	pad := DefaultPadding()
	if opts.Padding != nil {
		pad = *opts.Padding
	}
	maxCols := opts.MaxColumns
	if maxCols <= 0 {
		maxCols = DefaultMaxColumns
	}

	if len(tasks) == 0 && opts.Now.IsZero() {
		return nil, ErrNoAnchor
	}
	lo, hi := extent(tasks, opts.Now)
	p := &Projection{
		Mode:  mode,
		Start: floorHour(lo.Add(-pad.LeadIn)),
		End:   ceilHour(hi.Add(pad.TrailOut)),
	}

	for t := p.Start; t.Before(p.End); t = t.Add(mode.Step) {
		if len(p.Columns) == maxCols {
			p.Truncated = true
			break
		}
		col := Column{
			Index:    len(p.Columns),
			Start:    t,
			Lower:    mode.Lower(t),
			Boundary: mode.Boundary(t),
		}
		if col.Boundary {
			col.Upper = mode.Upper(t)
		}
		p.Columns = append(p.Columns, col)
	}

	names := make(map[string]string, len(tasks))
	for _, t := range tasks {
		names[t.ID] = t.Name
	}
	p.Rows = make([]Row, 0, len(tasks))
	for _, t := range tasks {
		row := Row{
			ID:          t.ID,
			Name:        t.Name,
			Start:       t.Start,
			End:         t.End,
			Progress:    t.Progress,
			CustomClass: t.CustomClass,
			Offset:      p.ColumnOf(t.Start),
			Span:        float64(t.Duration()) / float64(mode.Step),
		}
		for _, dep := range t.Dependencies {
			name, ok := names[dep]
			row.Dependencies = append(row.Dependencies, task.DependencyLabel{ID: dep, Name: name, Resolved: ok})
		}
		p.Rows = append(p.Rows, row)
	}
	return p, nil
}

// extent returns the earliest start and latest end. An empty set collapses
// to now.
func extent(tasks []task.Task, now time.Time) (time.Time, time.Time) {
	if len(tasks) == 0 {
		return now, now
	}
	lo, hi := tasks[0].Start, tasks[0].End
	for _, t := range tasks[1:] {
		if t.Start.Before(lo) {
			lo = t.Start
		}
		if t.End.After(hi) {
			hi = t.End
		}
	}
	return lo, hi
}

func floorHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

func ceilHour(t time.Time) time.Time {
	f := floorHour(t)
	if f.Equal(t) {
		return f
	}
	return f.Add(time.Hour)
}
