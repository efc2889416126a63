package app

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/nibzard/timeblock/internal/graph"
	"github.com/nibzard/timeblock/internal/persist"
	"github.com/nibzard/timeblock/internal/task"
	"github.com/nibzard/timeblock/internal/theme"
	"github.com/nibzard/timeblock/internal/timeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2024, 1, 15, 8, 30, 0, 0, time.Local)

// syncBuffer lets the test read log output written from the autosave
// goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	backend *persist.MemoryBackend
	snaps   *persist.SnapshotStore
	logs    *syncBuffer
}

func newFixture() *fixture {
	b := persist.NewMemoryBackend()
	return &fixture{backend: b, snaps: persist.NewSnapshotStore(b), logs: &syncBuffer{}}
}

func (f *fixture) open(t *testing.T, mutate ...func(*Options)) *App {
	t.Helper()
	opts := Options{
		Snapshots:     f.snaps,
		Themes:        persist.NewThemeStore(f.backend),
		Logger:        log.NewWithOptions(f.logs, log.Options{Level: log.DebugLevel}),
		Now:           func() time.Time { return fixedNow },
		AutosaveDelay: time.Hour,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func (f *fixture) saved(t *testing.T) *persist.Snapshot {
	t.Helper()
	snap, err := f.snaps.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return snap
}

func ids(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestStartWithoutSnapshotUsesSamples(t *testing.T) {
	f := newFixture()
	a := f.open(t)

	if a.Origin() != OriginSample {
		t.Errorf("Origin = %q, want sample", a.Origin())
	}
	if diff := cmp.Diff([]string{"task-1", "task-2", "task-3", "task-4"}, ids(a.Tasks())); diff != "" {
		t.Errorf("sample ids mismatch (-want +got):\n%s", diff)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.backend.Puts() != 0 {
		t.Errorf("loading wrote %d times; the first load must not save", f.backend.Puts())
	}
}

func TestStartRestoresSavedState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	err := f.snaps.Save(ctx, &persist.Snapshot{
		Tasks: []task.Record{
			{ID: "a", Name: "Plan", Start: "2024-01-15 09:00", End: "2024-01-15 10:00"},
			{ID: "b", Name: "Build", Start: "2024-01-15 10:00", End: "2024-01-15 12:00", Dependencies: task.DependencySet{"a", "gone"}},
		},
		ViewMode: "30-Minute",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	dark, _ := theme.Preset("dark")
	if err := persist.NewThemeStore(f.backend).Save(ctx, dark); err != nil {
		t.Fatalf("Save theme: %v", err)
	}

	a := f.open(t)
	if a.Origin() != OriginSaved {
		t.Errorf("Origin = %q, want saved", a.Origin())
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids(a.Tasks())); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if a.ViewMode().Name != "30-Minute" {
		t.Errorf("ViewMode = %q, want the saved 30-Minute", a.ViewMode().Name)
	}
	if a.Theme() != dark {
		t.Errorf("Theme = %+v, want dark", a.Theme())
	}
}

func TestStartFallsBackOnBadSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantLog string
	}{
		{"not json", `{"tasks": [`, "saved chart unreadable"},
		{"schema violation", `{"tasks":[{"id":"a","name":"A","start":"9am","end":"2024-01-15 10:00"}]}`, "saved chart unreadable"},
		{"cycle", `{"tasks":[
			{"id":"a","name":"A","start":"2024-01-15 09:00","end":"2024-01-15 10:00","dependencies":"b"},
			{"id":"b","name":"B","start":"2024-01-15 10:00","end":"2024-01-15 11:00","dependencies":"a"}]}`, "saved chart rejected"},
		{"end before start", `{"tasks":[{"id":"a","name":"A","start":"2024-01-15 10:00","end":"2024-01-15 09:00"}]}`, "saved chart rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if err := f.backend.Put(context.Background(), persist.SnapshotKey, []byte(tt.data)); err != nil {
				t.Fatal(err)
			}
			a := f.open(t)
			if a.Origin() != OriginSample || len(a.Tasks()) != 4 {
				t.Errorf("Origin = %q with %d tasks, want the samples", a.Origin(), len(a.Tasks()))
			}
			if !strings.Contains(f.logs.String(), tt.wantLog) {
				t.Errorf("log missing %q:\n%s", tt.wantLog, f.logs.String())
			}
		})
	}
}

func TestStartIgnoresBadTheme(t *testing.T) {
	f := newFixture()
	if err := f.backend.Put(context.Background(), persist.ThemeKey, []byte(`{"primary":"red"}`)); err != nil {
		t.Fatal(err)
	}
	a := f.open(t)
	if a.Theme() != theme.Default() {
		t.Errorf("Theme = %+v, want the default", a.Theme())
	}
	if !strings.Contains(f.logs.String(), "saved theme unreadable") {
		t.Errorf("bad theme not logged:\n%s", f.logs.String())
	}
}

func TestMutationsScheduleSave(t *testing.T) {
	f := newFixture()
	a := f.open(t)

	added, err := a.AddTask(task.Draft{
		Name:         "Review",
		Start:        "2024-01-15 13:00",
		End:          "2024-01-15 14:00",
		Dependencies: task.DependencySet{"task-4"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	progress := 40
	if _, err := a.UpdateTask(added.ID, task.Patch{Progress: &progress}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if err := a.DeleteTask("task-1"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if f.backend.Puts() != 0 {
		t.Fatal("save happened before the quiet period")
	}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.backend.Puts() != 1 {
		t.Errorf("Puts = %d, want one coalesced write", f.backend.Puts())
	}

	snap := f.saved(t)
	if len(snap.Tasks) != 4 {
		t.Fatalf("saved %d tasks, want 4", len(snap.Tasks))
	}
	last := snap.Tasks[len(snap.Tasks)-1]
	if last.ID != added.ID || last.Progress != 40 {
		t.Errorf("saved task = %+v, want the updated addition", last)
	}
	if len(snap.Tasks[0].Dependencies) != 0 {
		t.Errorf("task-2 still depends on %v after task-1 was deleted", snap.Tasks[0].Dependencies)
	}
	if snap.ViewMode != "15-Minute" {
		t.Errorf("ViewMode = %q", snap.ViewMode)
	}
}

func TestFailedMutationsDoNotSave(t *testing.T) {
	f := newFixture()
	a := f.open(t)

	if _, err := a.AddTask(task.Draft{Name: "", Start: "bad", End: "bad"}); err == nil {
		t.Fatal("invalid AddTask succeeded")
	}
	cycle := task.NewDependencySet("task-4")
	var cycleErr *graph.CircularDependencyError
	if _, err := a.UpdateTask("task-1", task.Patch{Dependencies: &cycle}); !errors.As(err, &cycleErr) {
		t.Fatalf("UpdateTask error = %v, want a cycle", err)
	}
	if err := a.DeleteTask("nope"); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("DeleteTask error = %v, want ErrNotFound", err)
	}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.backend.Puts() != 0 {
		t.Errorf("failed mutations wrote %d times", f.backend.Puts())
	}
}

func TestLifecycleErrors(t *testing.T) {
	f := newFixture()
	a, err := New(Options{Snapshots: f.snaps, Logger: log.New(f.logs)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.AddTask(task.Draft{}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("AddTask before Start = %v, want ErrNotStarted", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.DeleteTask("task-1"); !errors.Is(err, ErrClosed) {
		t.Errorf("DeleteTask after Close = %v, want ErrClosed", err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Errorf("second Close = %v", err)
	}

	if _, err := New(Options{}); err == nil {
		t.Error("New without a snapshot adapter should fail")
	}
}

func TestCloseKeepsCommittedMutations(t *testing.T) {
	f := newFixture()
	a := f.open(t)

	added := make(chan string, 1000)
	started := make(chan struct{})
	var once sync.Once
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(added)
		defer once.Do(func() { close(started) })
		for i := 0; i < 1000; i++ {
			got, err := a.AddTask(task.Draft{
				Name:  "block " + strconv.Itoa(i),
				Start: "2024-01-15 09:00",
				End:   "2024-01-15 09:15",
			})
			if errors.Is(err, ErrClosed) {
				return
			}
			if err != nil {
				t.Errorf("AddTask: %v", err)
				return
			}
			added <- got.ID
			if i == 10 {
				once.Do(func() { close(started) })
			}
		}
	}()

	<-started
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()

	snap, err := f.snaps.Load(context.Background())
	if err != nil || snap == nil {
		t.Fatalf("Load = %v, %v", snap, err)
	}
	saved := make(map[string]bool, len(snap.Tasks))
	for _, r := range snap.Tasks {
		saved[r.ID] = true
	}
	for id := range added {
		if !saved[id] {
			t.Errorf("task %s was committed but not saved", id)
		}
	}
}

func TestDebouncedSaveFires(t *testing.T) {
	f := newFixture()
	a := f.open(t, func(o *Options) { o.AutosaveDelay = 10 * time.Millisecond })

	if err := a.ResetToDefaults(); err != nil {
		t.Fatalf("ResetToDefaults: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.backend.Puts() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("debounced save never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetTheme(t *testing.T) {
	f := newFixture()
	a := f.open(t)
	ctx := context.Background()

	ocean, _ := theme.Preset("ocean")
	if err := a.SetTheme(ctx, ocean); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	got, ok, err := persist.NewThemeStore(f.backend).Load(ctx)
	if err != nil || !ok || got != ocean {
		t.Errorf("stored theme = %+v ok %v err %v, want ocean", got, ok, err)
	}

	bad := ocean
	bad.Primary = "teal"
	if err := a.SetTheme(ctx, bad); err == nil {
		t.Error("invalid theme accepted")
	}
	if a.Theme() != ocean {
		t.Error("rejected theme changed the active theme")
	}

	if err := a.ResetTheme(ctx); err != nil {
		t.Fatalf("ResetTheme: %v", err)
	}
	if a.Theme() != theme.Default() {
		t.Errorf("ResetTheme left %+v", a.Theme())
	}
}

func TestProjectionUsesViewMode(t *testing.T) {
	f := newFixture()
	hourly := timeline.Hourly()
	a := f.open(t, func(o *Options) { o.Mode = hourly })

	p, err := a.Projection()
	if err != nil {
		t.Fatalf("Projection: %v", err)
	}
	// Samples run 09:00-12:00; padded and rounded to 08:00-14:00.
	if p.Mode.Name != "Hour" || len(p.Columns) != 6 {
		t.Errorf("projection = %s with %d columns, want Hour with 6", p.Mode.Name, len(p.Columns))
	}
	if len(p.Rows) != 4 || p.Rows[1].Dependencies[0].Label() != "Morning Standup" {
		t.Errorf("rows not resolved: %+v", p.Rows)
	}

	if err := a.SetViewMode(timeline.FifteenMinute()); err != nil {
		t.Fatalf("SetViewMode: %v", err)
	}
	if err := a.SetViewMode(timeline.ViewMode{Name: "broken"}); err == nil {
		t.Error("invalid mode accepted")
	}
	p, _ = a.Projection()
	if len(p.Columns) != 24 {
		t.Errorf("columns = %d, want 24 quarter hours", len(p.Columns))
	}
}

func TestReplaceTasksIsStrict(t *testing.T) {
	f := newFixture()
	a := f.open(t)

	err := a.ReplaceTasks([]task.Record{
		{ID: "x", Name: "X", Start: "2024-01-15 09:00", End: "2024-01-15 10:00", Dependencies: task.DependencySet{"missing"}},
	})
	if !errors.Is(err, task.ErrUnknownDependency) {
		t.Fatalf("ReplaceTasks error = %v, want ErrUnknownDependency", err)
	}
	if len(a.Tasks()) != 4 {
		t.Error("rejected import changed the tasks")
	}
}

func TestDefaultTasks(t *testing.T) {
	got := DefaultTasks(time.Date(2024, 3, 5, 22, 0, 0, 0, time.Local))
	want := []string{
		"task-1 Morning Standup 2024-03-05 09:00 2024-03-05 09:15 100 ",
		"task-2 Deep Work Session 2024-03-05 09:15 2024-03-05 10:30 75 task-1",
		"task-3 Coffee Break 2024-03-05 10:30 2024-03-05 10:45 100 task-2",
		"task-4 Team Meeting 2024-03-05 11:00 2024-03-05 12:00 50 task-3",
	}
	var lines []string
	for _, r := range got {
		lines = append(lines, strings.Join([]string{r.ID, r.Name, r.Start, r.End, strconv.Itoa(r.Progress), r.Dependencies.String()}, " "))
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("DefaultTasks mismatch (-want +got):\n%s", diff)
	}
}
