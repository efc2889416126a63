// Package app wires the task store, persistence, autosave and theme into the
// chart state object that front ends drive.
//
// An App has an explicit lifecycle: Start loads saved state (falling back to
// sample tasks), mutations schedule a debounced save, and Close flushes.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/timeblock/internal/persist"
	"github.com/nibzard/timeblock/internal/task"
	"github.com/nibzard/timeblock/internal/theme"
	"github.com/nibzard/timeblock/internal/timeline"
	"github.com/nibzard/timeblock/internal/timeval"
)

var (
	// ErrNotStarted is returned by operations that need loaded state.
	ErrNotStarted = errors.New("app not started")
	// ErrClosed is returned by mutations after Close.
	ErrClosed = errors.New("app closed")
)

// Origin says where the current task set came from.
type Origin string

const (
	OriginSaved  Origin = "saved"
	OriginSample Origin = "sample"
)

// Options configures an App. Snapshots is required; everything else has a
// default.
type Options struct {
	Snapshots persist.Adapter
	// Themes persists the theme. Nil keeps the theme in memory only.
	Themes *persist.ThemeStore
	Logger *log.Logger
	Now    func() time.Time
	// AutosaveDelay is the quiet period before a save; zero selects
	// persist.DefaultAutosaveDelay.
	AutosaveDelay time.Duration
	// Mode overrides the view mode stored in the snapshot when set.
	Mode timeline.ViewMode
	// ColumnWidth sets the cell width of the default and restored modes
	// when Mode is unset.
	ColumnWidth int
	Padding     *timeline.Padding
	// Theme is used when no theme has been saved. Zero selects theme.Default.
	Theme      theme.Theme
	NewID      func() string
	MaxColumns int
}

// App is the chart state object.
type App struct {
	store     *task.Store
	snapshots persist.Adapter
	themes    *persist.ThemeStore
	saver     *persist.AutoSaver
	logger    *log.Logger
	now       func() time.Time
	padding   *timeline.Padding
	maxCols   int

	// life is held shared by mutations and exclusively by Close, so a
	// committed change always reaches the saver before it closes.
	life sync.RWMutex

	mu           sync.RWMutex
	started      bool
	closed       bool
	origin       Origin
	theme        theme.Theme
	defaultTheme theme.Theme
	mode         timeline.ViewMode
	modeFixed    bool
}

// New creates an App. Nothing is loaded until Start.
func New(opts Options) (*App, error) {
	if opts.Snapshots == nil {
		return nil, errors.New("app: snapshot adapter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	def := opts.Theme
	if def == (theme.Theme{}) {
		def = theme.Default()
	}
	if err := def.Normalize().Validate(); err != nil {
		return nil, fmt.Errorf("app: default theme: %w", err)
	}
	mode := timeline.FifteenMinute()
	if opts.ColumnWidth > 0 {
		mode = mode.WithColumnWidth(opts.ColumnWidth)
	}
	if opts.Mode.Step != 0 {
		if err := opts.Mode.Validate(); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		mode = opts.Mode
	}

	var storeOpts []task.StoreOption
	if opts.NewID != nil {
		storeOpts = append(storeOpts, task.WithIDGenerator(opts.NewID))
	}

	return &App{
		store:        task.NewStore(storeOpts...),
		snapshots:    opts.Snapshots,
		themes:       opts.Themes,
		saver:        persist.NewAutoSaver(opts.Snapshots, opts.AutosaveDelay, logger),
		logger:       logger,
		now:          now,
		padding:      opts.Padding,
		maxCols:      opts.MaxColumns,
		defaultTheme: def.Normalize(),
		theme:        def.Normalize(),
		mode:         mode,
		modeFixed:    opts.Mode.Step != 0,
	}, nil
}

// Start loads the saved snapshot and theme. A missing, unreadable or
// inconsistent snapshot is replaced by the sample tasks; the reason is
// logged. Loading never schedules a save.
func (a *App) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("app already started")
	}

	a.origin = OriginSample
	snap, err := a.snapshots.Load(ctx)
	switch {
	case err != nil:
		a.logger.Warn("saved chart unreadable, using sample tasks", "err", err)
	case snap == nil:
		a.logger.Debug("no saved chart, using sample tasks")
	default:
		if rerr := a.store.Restore(snap.Tasks); rerr != nil {
			a.logger.Warn("saved chart rejected, using sample tasks", "err", rerr)
		} else {
			a.origin = OriginSaved
			a.restoreMode(snap.ViewMode)
		}
	}
	if a.origin == OriginSample {
		if err := a.store.Restore(DefaultTasks(a.now())); err != nil {
			return fmt.Errorf("load sample tasks: %w", err)
		}
	}

	if a.themes != nil {
		t, ok, err := a.themes.Load(ctx)
		switch {
		case err != nil:
			a.logger.Warn("saved theme unreadable, using default", "err", err)
		case ok:
			a.theme = t
		}
	}

	a.started = true
	a.logger.Debug("chart loaded", "origin", a.origin, "tasks", a.store.Len(), "mode", a.mode.Name)
	return nil
}

func (a *App) restoreMode(name string) {
	if a.modeFixed || name == "" {
		return
	}
	mode, err := timeline.ModeByName(name)
	if err != nil {
		a.logger.Warn("saved view mode ignored", "err", err)
		return
	}
	a.mode = mode.WithColumnWidth(a.mode.ColumnWidth)
}

// checkMutable guards mutations. Callers hold no lock.
func (a *App) checkMutable() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	switch {
	case a.closed:
		return ErrClosed
	case !a.started:
		return ErrNotStarted
	}
	return nil
}

// mutate runs fn and, if it succeeds, schedules a save. Close waits for it.
func (a *App) mutate(fn func() error) error {
	a.life.RLock()
	defer a.life.RUnlock()
	if err := a.checkMutable(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	a.scheduleSave()
	return nil
}

// AddTask adds a task and schedules a save.
func (a *App) AddTask(d task.Draft) (task.Task, error) {
	var t task.Task
	err := a.mutate(func() (err error) {
		t, err = a.store.Add(d)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}
	a.logger.Debug("task added", "id", t.ID)
	return t, nil
}

// UpdateTask merges p into a task and schedules a save.
func (a *App) UpdateTask(id string, p task.Patch) (task.Task, error) {
	var t task.Task
	err := a.mutate(func() (err error) {
		t, err = a.store.Update(id, p)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}
	a.logger.Debug("task updated", "id", id)
	return t, nil
}

// DeleteTask removes a task and schedules a save.
func (a *App) DeleteTask(id string) error {
	if err := a.mutate(func() error { return a.store.Delete(id) }); err != nil {
		return err
	}
	a.logger.Debug("task deleted", "id", id)
	return nil
}

// ReplaceTasks swaps the whole task set after strict validation, as used by
// import.
func (a *App) ReplaceTasks(records []task.Record) error {
	if err := a.mutate(func() error { return a.store.ReplaceAll(records) }); err != nil {
		return err
	}
	a.logger.Debug("tasks replaced", "tasks", len(records))
	return nil
}

// ResetToDefaults replaces the tasks with the sample set.
func (a *App) ResetToDefaults() error {
	return a.mutate(func() error {
		if err := a.store.ReplaceAll(DefaultTasks(a.now())); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		a.mu.Lock()
		a.origin = OriginSample
		a.mu.Unlock()
		return nil
	})
}

// SetViewMode changes the column scale and schedules a save.
func (a *App) SetViewMode(mode timeline.ViewMode) error {
	return a.mutate(func() error {
		if err := mode.Validate(); err != nil {
			return err
		}
		a.mu.Lock()
		a.mode = mode
		a.mu.Unlock()
		return nil
	})
}

// SetTheme validates and applies t. The theme is written immediately; a
// write failure is logged and the in-memory theme still changes.
func (a *App) SetTheme(ctx context.Context, t theme.Theme) error {
	if err := a.checkMutable(); err != nil {
		return err
	}
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	a.theme = t
	a.mu.Unlock()

	if a.themes != nil {
		if err := a.themes.Save(ctx, t); err != nil {
			a.logger.Error("theme save failed", "err", err)
		}
	}
	return nil
}

// ResetTheme restores the configured default theme.
func (a *App) ResetTheme(ctx context.Context) error {
	return a.SetTheme(ctx, a.defaultTheme)
}

func (a *App) scheduleSave() {
	a.saver.Schedule(a.snapshot())
}

func (a *App) snapshot() *persist.Snapshot {
	a.mu.RLock()
	mode := a.mode.Name
	a.mu.RUnlock()
	return &persist.Snapshot{Tasks: a.store.Records(), ViewMode: mode}
}

// Snapshot returns the current state in its persisted form.
func (a *App) Snapshot() *persist.Snapshot {
	return a.snapshot()
}

// Tasks returns the tasks in insertion order.
func (a *App) Tasks() []task.Task {
	return a.store.List()
}

// Task returns one task.
func (a *App) Task(id string) (task.Task, bool) {
	return a.store.Get(id)
}

// Records returns the renderer input: every task in wire form.
func (a *App) Records() []task.Record {
	return a.store.Records()
}

// DependencyLabels resolves t's prerequisites to task names.
func (a *App) DependencyLabels(t task.Task) []task.DependencyLabel {
	return a.store.DependencyLabels(t)
}

// CanDepend reports whether id may depend on dep.
func (a *App) CanDepend(id, dep string) error {
	return a.store.CanDepend(id, dep)
}

// Startable returns incomplete tasks whose prerequisites are all done.
func (a *App) Startable() []task.Task {
	return a.store.Startable()
}

// Projection computes the chart grid for the current tasks.
func (a *App) Projection() (*timeline.Projection, error) {
	a.mu.RLock()
	mode := a.mode
	a.mu.RUnlock()
	return timeline.Project(a.store.List(), timeline.Options{
		Mode:       mode,
		Padding:    a.padding,
		MaxColumns: a.maxCols,
		Now:        a.now(),
	})
}

// Theme returns the active theme.
func (a *App) Theme() theme.Theme {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.theme
}

// ViewMode returns the active view mode.
func (a *App) ViewMode() timeline.ViewMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Now returns the app clock's current time.
func (a *App) Now() time.Time {
	return a.now()
}

// Origin reports whether the tasks came from saved state or the samples.
func (a *App) Origin() Origin {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.origin
}

// Flush writes any pending change now.
func (a *App) Flush(ctx context.Context) error {
	return a.saver.Flush(ctx)
}

// Close flushes pending changes and rejects further mutations. The flush
// error, if any, has already been logged.
func (a *App) Close(ctx context.Context) error {
	a.life.Lock()
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.life.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	a.life.Unlock()
	return a.saver.Close(ctx)
}

// DefaultTasks returns the sample chart for the day containing now: a
// standup, a work block, a break and a meeting chained by dependencies.
func DefaultTasks(now time.Time) []task.Record {
	at := func(h, m int) string { return timeval.TodayAt(now, h, m) }
	return []task.Record{
		{ID: "task-1", Name: "Morning Standup", Start: at(9, 0), End: at(9, 15), Progress: 100},
		{ID: "task-2", Name: "Deep Work Session", Start: at(9, 15), End: at(10, 30), Progress: 75,
			Dependencies: task.DependencySet{"task-1"}},
		{ID: "task-3", Name: "Coffee Break", Start: at(10, 30), End: at(10, 45), Progress: 100,
			Dependencies: task.DependencySet{"task-2"}},
		{ID: "task-4", Name: "Team Meeting", Start: at(11, 0), End: at(12, 0), Progress: 50,
			Dependencies: task.DependencySet{"task-3"}},
	}
}
