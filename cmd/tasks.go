package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nibzard/timeblock/internal/app"
	"github.com/nibzard/timeblock/internal/task"
	"github.com/nibzard/timeblock/internal/timeval"
)

// taskFlags are the editable task fields shared by add and update.
type taskFlags struct {
	name, start, end, after, desc, class string
	progress                             int
}

func (f *taskFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "Task name")
	fs.StringVar(&f.start, "start", "", "Start time (YYYY-MM-DD HH:mm or HH:mm)")
	fs.StringVar(&f.end, "end", "", "End time (YYYY-MM-DD HH:mm or HH:mm)")
	fs.IntVar(&f.progress, "progress", 0, "Progress percentage (0-100)")
	fs.StringVar(&f.after, "after", "", "Comma-separated prerequisite ids")
	fs.StringVar(&f.desc, "desc", "", "Description")
	fs.StringVar(&f.class, "class", "", "Display class")
}

// visited returns the names of flags set on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// resolveTime expands an "HH:mm" shorthand to today's date. Anything else is
// passed through for the store to validate.
func resolveTime(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	if len(s) > 5 || !strings.Contains(s, ":") {
		return s
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return s
	}
	return timeval.TodayAt(now, t.Hour(), t.Minute())
}

// lsCommand lists tasks in insertion order.
func (e *env) lsCommand(a *app.App, args []string) error {
	fs := flag.NewFlagSet("timeblock ls", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	verbose := fs.Bool("v", false, "Show descriptions and classes")
	startable := fs.Bool("startable", false, "Only tasks whose prerequisites are complete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	tasks := a.Tasks()
	if *startable {
		tasks = a.Startable()
	}
	if len(tasks) == 0 {
		fmt.Fprintln(e.out, "No tasks found.")
		return nil
	}

	idW := 0
	for _, t := range tasks {
		idW = max(idW, len(t.ID))
	}
	for _, t := range tasks {
		fmt.Fprintf(e.out, "%s %-*s  %s  %3d%%  %s\n", statusIcon(t), idW, t.ID, span(t), t.Progress, t.Name)
		if labels := a.DependencyLabels(t); len(labels) > 0 {
			fmt.Fprintf(e.out, "  %*s  after: %s\n", idW, "", formatLabels(labels))
		}
		if *verbose {
			printDetails(e.out, idW, t)
		}
	}
	return nil
}

func statusIcon(t task.Task) string {
	switch {
	case t.Done():
		return "✓"
	case t.Progress > 0:
		return "◐"
	default:
		return "○"
	}
}

// span formats the task's time range, eliding the end date on one-day tasks.
func span(t task.Task) string {
	if timeval.FormatDate(t.Start) == timeval.FormatDate(t.End) {
		return timeval.Format(t.Start) + "-" + t.End.Format("15:04")
	}
	return timeval.Format(t.Start) + " - " + timeval.Format(t.End)
}

func formatLabels(labels []task.DependencyLabel) string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l.Resolved {
			out = append(out, l.Label())
		} else {
			out = append(out, l.ID+" (missing)")
		}
	}
	return strings.Join(out, ", ")
}

func printDetails(w io.Writer, indent int, t task.Task) {
	if t.Description != "" {
		fmt.Fprintf(w, "  %*s  %s\n", indent, "", t.Description)
	}
	if t.CustomClass != "" {
		fmt.Fprintf(w, "  %*s  class: %s\n", indent, "", t.CustomClass)
	}
}

// addCommand adds one task. The name may be given as the only positional
// argument.
func (e *env) addCommand(a *app.App, args []string) error {
	fs := flag.NewFlagSet("timeblock add", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	var f taskFlags
	f.register(fs)
	id := fs.String("id", "", "Task id (generated when empty)")

	lead, rest := splitLeadingArg(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	name := f.name
	positional := fs.Args()
	if lead != "" {
		positional = append([]string{lead}, positional...)
	}
	if len(positional) > 1 {
		return fmt.Errorf("unexpected arguments: %v", positional[1:])
	}
	if name == "" && len(positional) == 1 {
		name = positional[0]
	}

	now := e.now()
	d := task.Draft{
		ID:           *id,
		Name:         name,
		Start:        resolveTime(f.start, now),
		End:          resolveTime(f.end, now),
		Dependencies: task.ParseDependencies(f.after),
		Description:  f.desc,
		CustomClass:  f.class,
	}
	if visited(fs)["progress"] {
		d.Progress = &f.progress
	}

	t, err := a.AddTask(d)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Added %s: %s (%s)\n", t.ID, t.Name, span(t))
	return nil
}

// updateCommand applies the flags that were set to one task.
func (e *env) updateCommand(a *app.App, args []string) error {
	fs := flag.NewFlagSet("timeblock update", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	var f taskFlags
	f.register(fs)

	id, rest := splitLeadingArg(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	positional := fs.Args()
	if id == "" && len(positional) > 0 {
		id, positional = positional[0], positional[1:]
	}
	if len(positional) > 0 {
		return fmt.Errorf("unexpected arguments: %v", positional)
	}
	if id == "" {
		return errors.New("update: task id required")
	}

	now := e.now()
	var p task.Patch
	for name := range visited(fs) {
		switch name {
		case "name":
			p.Name = &f.name
		case "start":
			start := resolveTime(f.start, now)
			p.Start = &start
		case "end":
			end := resolveTime(f.end, now)
			p.End = &end
		case "progress":
			p.Progress = &f.progress
		case "after":
			deps := task.ParseDependencies(f.after)
			p.Dependencies = &deps
		case "desc":
			p.Description = &f.desc
		case "class":
			p.CustomClass = &f.class
		}
	}
	if p.IsZero() {
		return errors.New("update: nothing to change")
	}

	t, err := a.UpdateTask(id, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Updated %s: %s (%s, %d%%)\n", t.ID, t.Name, span(t), t.Progress)
	return nil
}

// rmCommand deletes tasks, stopping at the first unknown id.
func (e *env) rmCommand(a *app.App, args []string) error {
	if len(args) == 0 {
		return errors.New("rm: task id required")
	}
	for _, id := range args {
		if err := a.DeleteTask(id); err != nil {
			return fmt.Errorf("rm %s: %w", id, err)
		}
		fmt.Fprintf(e.out, "Deleted %s\n", id)
	}
	return nil
}

// depsCommand shows or edits a task's prerequisites.
func (e *env) depsCommand(a *app.App, args []string) error {
	if len(args) == 0 {
		return errors.New("deps: task id required")
	}
	id, args := args[0], args[1:]
	t, ok := a.Task(id)
	if !ok {
		return fmt.Errorf("deps %s: %w", id, task.ErrNotFound)
	}

	if len(args) == 0 {
		labels := a.DependencyLabels(t)
		if len(labels) == 0 {
			fmt.Fprintf(e.out, "%s has no prerequisites.\n", t.Name)
			return nil
		}
		fmt.Fprintf(e.out, "%s runs after:\n", t.Name)
		for _, l := range labels {
			state := ""
			if !l.Resolved {
				state = " (missing)"
			}
			fmt.Fprintf(e.out, "  %s  %s%s\n", l.ID, l.Label(), state)
		}
		return nil
	}

	action, ids := args[0], args[1:]
	deps := t.Dependencies.Clone()
	switch action {
	case "add":
		if len(ids) == 0 {
			return errors.New("deps add: prerequisite id required")
		}
		for _, dep := range ids {
			if err := a.CanDepend(id, dep); err != nil {
				return fmt.Errorf("deps %s: %w", id, err)
			}
			deps = task.NewDependencySet(append(deps, dep)...)
		}
	case "rm":
		if len(ids) == 0 {
			return errors.New("deps rm: prerequisite id required")
		}
		for _, dep := range ids {
			deps = deps.Without(dep)
		}
	case "clear":
		deps = nil
	default:
		return fmt.Errorf("deps: unknown action %q (expected add, rm or clear)", action)
	}

	if deps.Equal(t.Dependencies) {
		fmt.Fprintln(e.out, "No change.")
		return nil
	}
	if _, err := a.UpdateTask(id, task.Patch{Dependencies: &deps}); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s now runs after: %s\n", id, orNone(deps.String()))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
