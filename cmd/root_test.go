package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nibzard/timeblock/internal/graph"
	"github.com/nibzard/timeblock/internal/task"
	"github.com/nibzard/timeblock/internal/timeval"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var configKeys = []string{
	"DATA_DIR", "BACKEND", "AUTOSAVE_DELAY_MS", "GRANULARITY_MINUTES",
	"LEAD_IN_MINUTES", "TRAIL_OUT_MINUTES", "COLUMN_WIDTH", "THEME",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_TIMESTAMPS", "LOG_CALLER", "LOG_DIR",
}

// cli runs commands against a private data directory.
type cli struct {
	t       *testing.T
	dataDir string
	global  []string
}

func newCLI(t *testing.T, global ...string) *cli {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
	t.Setenv("COLUMNS", "")
	for _, k := range configKeys {
		t.Setenv("TIMEBLOCK_"+k, "")
	}
	chdir(t, t.TempDir())

	dataDir := filepath.Join(home, "data")
	return &cli{t: t, dataDir: dataDir, global: append([]string{"-data-dir", dataDir}, global...)}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), append(append([]string(nil), c.global...), args...), &out, &errOut)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func (c *cli) snapshotPath() string {
	return filepath.Join(c.dataDir, "gantt-chart-data.json")
}

func TestRunHelpAndVersion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"help flag", []string{"--help"}, "Commands:"},
		{"short help", []string{"-h"}, "Global Options:"},
		{"help command", []string{"help"}, "import <file>"},
		{"version flag", []string{"--version"}, "timeblock version dev"},
		{"version command", []string{"version"}, "timeblock version dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t)
			out := c.mustRun(tt.args...)
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("frobnicate"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("err = %v, want unknown command", err)
	}
}

func TestLsShowsSamplesWithoutSaving(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("ls")
	for _, want := range []string{"task-1", "Morning Standup", "100%", "after: Morning Standup", "Team Meeting"} {
		if !strings.Contains(out, want) {
			t.Errorf("ls missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(c.snapshotPath()); !os.IsNotExist(err) {
		t.Errorf("listing should not save the chart (stat err %v)", err)
	}

	// task-2 and task-4 have every prerequisite done and are not done
	// themselves.
	out = c.mustRun("ls", "-startable")
	for _, id := range []string{"task-1", "task-3"} {
		if strings.Contains(out, id) {
			t.Errorf("startable lists %s:\n%s", id, out)
		}
	}
	if !strings.Contains(out, "Deep Work Session") || !strings.Contains(out, "Team Meeting") {
		t.Errorf("startable should list task-2 and task-4:\n%s", out)
	}
}

func TestAddPersistsAcrossRuns(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("add", "Lunch", "-id", "lunch", "-start", "12:00", "-end", "13:00", "-after", "task-4", "-desc", "Cafe")
	if !strings.Contains(out, "Added lunch: Lunch") {
		t.Errorf("add output: %q", out)
	}
	if _, err := os.Stat(c.snapshotPath()); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	out = c.mustRun("ls", "-v")
	for _, want := range []string{"lunch", "Lunch", "after: Team Meeting", "Cafe", "12:00-13:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("ls after add missing %q:\n%s", want, out)
		}
	}
}

func TestAddRejectsInvalidTask(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("add", "-name", "Backwards", "-start", "2024-01-15 10:00", "-end", "2024-01-15 09:00")
	var verr *task.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want a validation error", err)
	}
	_, err = c.run("add", "-id", "task-1", "-name", "Again", "-start", "10:00", "-end", "11:00")
	if !errors.Is(err, task.ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	if _, err := os.Stat(c.snapshotPath()); !os.IsNotExist(err) {
		t.Error("failed adds should not save")
	}
}

func TestAddToleratesDanglingPrerequisite(t *testing.T) {
	c := newCLI(t)

	c.mustRun("add", "-name", "Orphan", "-start", "10:00", "-end", "11:00", "-after", "nope")
	if out := c.mustRun("ls"); !strings.Contains(out, "after: nope (missing)") {
		t.Errorf("dangling prerequisite should be listed by id:\n%s", out)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("update", "task-2", "-progress", "100", "-name", "Focus")
	if !strings.Contains(out, "Updated task-2: Focus") || !strings.Contains(out, "100%") {
		t.Errorf("update output: %q", out)
	}
	if _, err := c.run("update", "task-2"); err == nil {
		t.Error("update without flags should fail")
	}
	if _, err := c.run("update", "ghost", "-progress", "5"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	c.mustRun("rm", "task-2")
	out = c.mustRun("deps", "task-3")
	if !strings.Contains(out, "has no prerequisites") {
		t.Errorf("deleting task-2 should strip it from task-3:\n%s", out)
	}
	if _, err := c.run("rm", "task-2"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDepsEditing(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("deps", "task-4", "add", "task-1")
	if !strings.Contains(out, "task-3,task-1") {
		t.Errorf("deps add output: %q", out)
	}
	out = c.mustRun("deps", "task-4")
	if !strings.Contains(out, "Coffee Break") || !strings.Contains(out, "Morning Standup") {
		t.Errorf("deps listing:\n%s", out)
	}

	_, err := c.run("deps", "task-1", "add", "task-4")
	var cycle *graph.CircularDependencyError
	if !errors.As(err, &cycle) {
		t.Fatalf("err = %v, want a circular dependency error", err)
	}

	out = c.mustRun("deps", "task-4", "rm", "task-3", "task-1")
	if !strings.Contains(out, "(none)") {
		t.Errorf("deps rm output: %q", out)
	}
	if out := c.mustRun("deps", "task-4", "clear"); !strings.Contains(out, "No change.") {
		t.Errorf("clearing an empty set: %q", out)
	}
	if _, err := c.run("deps", "task-4", "swap"); err == nil {
		t.Error("unknown action should fail")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "-id", "lunch", "-name", "Lunch", "-start", "12:00", "-end", "13:00")

	file := filepath.Join(t.TempDir(), "chart.yaml")
	if out := c.mustRun("export", "-o", file); !strings.Contains(out, "Exported 5 tasks") {
		t.Errorf("export output: %q", out)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "name: Lunch") {
		t.Errorf("export should be yaml:\n%s", data)
	}

	c.mustRun("reset")
	if out := c.mustRun("ls"); strings.Contains(out, "Lunch") {
		t.Fatal("reset kept the added task")
	}
	if out := c.mustRun("import", file); !strings.Contains(out, "Imported 5 tasks") {
		t.Errorf("import output: %q", out)
	}
	if out := c.mustRun("ls"); !strings.Contains(out, "Lunch") {
		t.Errorf("import lost a task:\n%s", out)
	}
}

func TestExportCalendar(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("export", "-format", "ics")
	if !strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n") || strings.Count(out, "BEGIN:VEVENT") != 4 {
		t.Errorf("calendar export:\n%s", out)
	}
	if _, err := c.run("export", "-format", "pdf"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestImportRejectsInvalidFile(t *testing.T) {
	c := newCLI(t)

	day := timeval.FormatDate(time.Now())
	file := filepath.Join(t.TempDir(), "cycle.json")
	doc := `{"tasks": [
  {"id": "a", "name": "A", "start": "` + day + ` 09:00", "end": "` + day + ` 10:00", "progress": 0, "dependencies": "b"},
  {"id": "b", "name": "B", "start": "` + day + ` 10:00", "end": "` + day + ` 11:00", "progress": 0, "dependencies": "a"}
]}`
	if err := os.WriteFile(file, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := c.run("import", file); err == nil {
		t.Fatal("cyclic import should fail")
	}
	if out := c.mustRun("ls"); !strings.Contains(out, "Morning Standup") {
		t.Errorf("failed import changed the tasks:\n%s", out)
	}
	if _, err := c.run("import", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestThemeCommand(t *testing.T) {
	c := newCLI(t)

	if out := c.mustRun("theme", "dark"); !strings.Contains(out, "Theme: dark") {
		t.Errorf("theme dark: %q", out)
	}
	if out := c.mustRun("theme"); !strings.Contains(out, "* dark") {
		t.Errorf("theme choice not persisted:\n%s", out)
	}
	if out := c.mustRun("theme", "set", "primary=#ff0000"); !strings.Contains(out, "Theme: custom") {
		t.Errorf("theme set: %q", out)
	}
	if out := c.mustRun("theme"); !strings.Contains(out, "#ff0000") {
		t.Errorf("custom color not persisted:\n%s", out)
	}
	if out := c.mustRun("theme", "reset"); !strings.Contains(out, "Theme: default") {
		t.Errorf("theme reset: %q", out)
	}

	for _, args := range [][]string{
		{"theme", "neon"},
		{"theme", "set", "primary"},
		{"theme", "set", "glow=#fff"},
		{"theme", "set", "primary=red"},
	} {
		if _, err := c.run(args...); err == nil {
			t.Errorf("%v should fail", args)
		}
	}
}

func TestConfiguredThemeIsDefault(t *testing.T) {
	c := newCLI(t, "-theme", "forest")
	if out := c.mustRun("theme"); !strings.Contains(out, "Theme: forest") {
		t.Errorf("configured preset not used:\n%s", out)
	}
}

func TestSQLiteBackend(t *testing.T) {
	c := newCLI(t, "-backend", "sqlite")

	c.mustRun("add", "-id", "lunch", "-name", "Lunch", "-start", "12:00", "-end", "13:00")
	if _, err := os.Stat(filepath.Join(c.dataDir, "timeblock.db")); err != nil {
		t.Fatalf("database not created: %v", err)
	}
	if out := c.mustRun("ls"); !strings.Contains(out, "Lunch") {
		t.Errorf("sqlite chart not reloaded:\n%s", out)
	}
	if _, err := os.Stat(c.snapshotPath()); !os.IsNotExist(err) {
		t.Error("sqlite backend wrote a json file")
	}
}

func TestViewCommand(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("view", "-width", "0")
	if !strings.Contains(out, "Morning Standup") || !strings.Contains(out, "15-Minute") {
		t.Errorf("view output:\n%s", out)
	}

	out = c.mustRun("view", "-mode", "Hour")
	if !strings.Contains(out, "Hour ·") {
		t.Errorf("view -mode output:\n%s", out)
	}
	if out := c.mustRun("export"); !strings.Contains(out, `"view_mode": "Hour"`) {
		t.Errorf("view mode not saved:\n%s", out)
	}
	if _, err := c.run("view", "-mode", "Fortnight"); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestGranularityFlagOverridesSavedMode(t *testing.T) {
	c := newCLI(t)
	c.mustRun("view", "-mode", "Hour")

	c.global = append(c.global, "-granularity", "30")
	if out := c.mustRun("view"); !strings.Contains(out, "30-Minute") {
		t.Errorf("flag should win over the saved mode:\n%s", out)
	}
}

func TestConfigCommand(t *testing.T) {
	c := newCLI(t, "-granularity", "30")

	out := c.mustRun("config")
	for _, want := range []string{"Config file: (none)", "granularity_minutes  = 30", "# flag", `backend              = "file"`} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
	if out := c.mustRun("config", "-example"); !strings.Contains(out, "granularity_minutes") {
		t.Errorf("example config:\n%s", out)
	}
}

func TestLogsCommand(t *testing.T) {
	logDir := t.TempDir()
	c := newCLI(t, "-log-dir", logDir, "-log-level", "debug")

	if out := c.mustRun("logs"); !strings.Contains(out, "No log files found.") {
		t.Errorf("logs before any run: %q", out)
	}
	c.mustRun("ls")

	path := strings.TrimSpace(c.mustRun("logs", "-path"))
	if filepath.Ext(path) != ".log" || !strings.HasPrefix(path, logDir) {
		t.Errorf("logs -path = %q", path)
	}
	if out := c.mustRun("logs"); !strings.Contains(out, "chart loaded") {
		t.Errorf("session log missing debug output:\n%s", out)
	}

	c = newCLI(t)
	if _, err := c.run("logs"); err == nil {
		t.Error("logs without log_dir should fail")
	}
}

func TestTUIRequiresTTY(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("tui"); err == nil || !strings.Contains(err.Error(), "timeblock view") {
		t.Errorf("err = %v, want a hint to use view", err)
	}
}

func TestResolveTime(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.Local)
	tests := []struct {
		in, want string
	}{
		{"09:30", "2024-01-15 09:30"},
		{" 7:05 ", "2024-01-15 07:05"},
		{"2024-02-01 10:00", "2024-02-01 10:00"},
		{"25:00", "25:00"},
		{"noon", "noon"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := resolveTime(tt.in, now); got != tt.want {
			t.Errorf("resolveTime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitLeadingArg(t *testing.T) {
	tests := []struct {
		args     []string
		wantLead string
		wantRest int
	}{
		{nil, "", 0},
		{[]string{"task-1", "-progress", "5"}, "task-1", 2},
		{[]string{"-progress", "5", "task-1"}, "", 3},
	}
	for _, tt := range tests {
		lead, rest := splitLeadingArg(tt.args)
		if lead != tt.wantLead || len(rest) != tt.wantRest {
			t.Errorf("splitLeadingArg(%v) = %q, %v", tt.args, lead, rest)
		}
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
