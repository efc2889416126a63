package persist

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/nibzard/timeblock/internal/task"
	"github.com/nibzard/timeblock/internal/theme"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Tasks: []task.Record{
			{ID: "task-1", Name: "Morning Standup", Start: "2024-01-15 09:00", End: "2024-01-15 09:15", Progress: 100},
			{ID: "task-2", Name: "Deep Work Session", Start: "2024-01-15 09:15", End: "2024-01-15 10:30", Progress: 75,
				Dependencies: task.DependencySet{"task-1"}},
		},
		ViewMode: "15-Minute",
	}
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	fb, err := NewFileBackend(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	sb, err := OpenSQLite(filepath.Join(t.TempDir(), "timeblock.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sb.Close() })
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   fb,
		"sqlite": sb,
	}
}

func TestBackends(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := b.Get(ctx, "k"); err != nil || ok {
				t.Fatalf("Get on empty backend = ok %v err %v", ok, err)
			}
			if err := b.Put(ctx, "k", []byte("one")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := b.Put(ctx, "k", []byte("two")); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			got, ok, err := b.Get(ctx, "k")
			if err != nil || !ok || string(got) != "two" {
				t.Fatalf("Get = %q ok %v err %v, want \"two\"", got, ok, err)
			}
			if err := b.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := b.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete of absent key: %v", err)
			}
			if _, ok, _ := b.Get(ctx, "k"); ok {
				t.Error("key still present after Delete")
			}
		})
	}
}

func TestFileBackendRejectsPathKeys(t *testing.T) {
	fb, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		if err := fb.Put(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("Put(%q) should fail", key)
		}
	}
}

func TestSQLiteMigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeblock.db")
	for i := 0; i < 2; i++ {
		b, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := b.Put(context.Background(), "k", []byte("v")); err != nil {
			t.Fatalf("Put #%d: %v", i+1, err)
		}
		b.Close()
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewSnapshotStore(b)

			if snap, err := s.Load(ctx); err != nil || snap != nil {
				t.Fatalf("Load before save = %v, %v; want nil, nil", snap, err)
			}

			want := sampleSnapshot()
			if err := s.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if want.SavedAt != nil {
				t.Error("Save modified the caller's snapshot")
			}

			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.SavedAt == nil || got.Version != SnapshotVersion {
				t.Errorf("stamp missing: version %d saved_at %v", got.Version, got.SavedAt)
			}
			if diff := cmp.Diff(want.Tasks, got.Tasks); diff != "" {
				t.Errorf("tasks mismatch (-want +got):\n%s", diff)
			}
			if got.ViewMode != want.ViewMode {
				t.Errorf("ViewMode = %q, want %q", got.ViewMode, want.ViewMode)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if snap, _ := s.Load(ctx); snap != nil {
				t.Error("snapshot present after Clear")
			}
		})
	}
}

func TestSnapshotFileFormat(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	if err := NewSnapshotStore(fb).Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(fb.Path(SnapshotKey))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("}\n")) {
		t.Error("snapshot file should end with a newline")
	}
	if !strings.Contains(string(data), "\n  \"tasks\": [") {
		t.Errorf("snapshot should use 2-space indentation:\n%s", data)
	}
	if !strings.Contains(string(data), `"dependencies": "task-1"`) {
		t.Errorf("dependencies should be stored comma-joined:\n%s", data)
	}
}

func TestSnapshotLoadTolerance(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantTasks int
		corrupt   bool
		wantPath  string
	}{
		{
			name:      "unknown fields",
			data:      `{"tasks":[{"id":"a","name":"A","start":"2024-01-15 09:00","end":"2024-01-15 10:00","color":"red"}],"zoom":3}`,
			wantTasks: 1,
		},
		{
			name:      "legacy array dependencies",
			data:      `{"tasks":[{"id":"a","name":"A","start":"2024-01-15 09:00","end":"2024-01-15 10:00","dependencies":["b"]}]}`,
			wantTasks: 1,
		},
		{
			name:      "empty task list",
			data:      `{"tasks":[]}`,
			wantTasks: 0,
		},
		{name: "not json", data: `{"tasks": [`, corrupt: true},
		{name: "missing tasks", data: `{"view_mode":"15-Minute"}`, corrupt: true},
		{
			name:     "bad timestamp",
			data:     `{"tasks":[{"id":"a","name":"A","start":"2024-01-15T09:00","end":"2024-01-15 10:00"}]}`,
			corrupt:  true,
			wantPath: "tasks[0].start",
		},
		{
			name:     "numeric dependencies",
			data:     `{"tasks":[{"id":"a","name":"A","start":"2024-01-15 09:00","end":"2024-01-15 10:00","dependencies":7}]}`,
			corrupt:  true,
			wantPath: "tasks[0].dependencies",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMemoryBackend()
			if err := b.Put(context.Background(), SnapshotKey, []byte(tt.data)); err != nil {
				t.Fatalf("Put: %v", err)
			}
			snap, err := NewSnapshotStore(b).Load(context.Background())
			if tt.corrupt {
				if !errors.Is(err, ErrCorrupt) {
					t.Fatalf("Load error = %v, want ErrCorrupt", err)
				}
				if tt.wantPath != "" {
					var se *SchemaError
					if !errors.As(err, &se) || !strings.HasPrefix(se.Path, tt.wantPath) {
						t.Errorf("schema error = %v, want path %s", err, tt.wantPath)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(snap.Tasks) != tt.wantTasks {
				t.Errorf("tasks = %d, want %d", len(snap.Tasks), tt.wantTasks)
			}
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			want := sampleSnapshot()
			if err := Encode(&buf, want, format); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(&buf, format)
			if err != nil {
				t.Fatalf("Decode: %v\n%s", err, buf.String())
			}
			if diff := cmp.Diff(want.Tasks, got.Tasks); diff != "" {
				t.Errorf("tasks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeYAMLSequenceDependencies(t *testing.T) {
	in := `
tasks:
  - id: b
    name: Review
    start: "2024-01-15 10:00"
    end: "2024-01-15 11:00"
    dependencies: [a, c]
`
	snap, err := Decode(strings.NewReader(in), FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(task.DependencySet{"a", "c"}, snap.Tasks[0].Dependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
	if FormatFromPath("plan.YAML") != FormatYAML || FormatFromPath("plan.json") != FormatJSON {
		t.Error("FormatFromPath picked the wrong format")
	}
}

func TestThemeStore(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := NewThemeStore(b)

	if _, ok, err := s.Load(ctx); ok || err != nil {
		t.Fatalf("Load before save = ok %v err %v", ok, err)
	}

	dark, _ := theme.Preset("dark")
	if err := s.Save(ctx, dark); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load = ok %v err %v", ok, err)
	}
	if got != dark {
		t.Errorf("Load = %+v, want %+v", got, dark)
	}

	// Themes saved before surface and muted existed still load.
	legacy := `{"primary":"#000000","secondary":"#111111","background":"#222222","text":"#ffffff"}`
	if err := b.Put(ctx, ThemeKey, []byte(legacy)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load legacy: %v", err)
	}
	if got.Surface != "#222222" || got.Muted != theme.FallbackMuted {
		t.Errorf("fallbacks not applied: %+v", got)
	}

	if err := b.Put(ctx, ThemeKey, []byte(`{"primary":"blue"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, _, err := s.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load invalid theme error = %v, want ErrCorrupt", err)
	}
}
