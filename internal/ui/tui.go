// Package ui provides the terminal chart viewer.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nibzard/timeblock/internal/app"
	"github.com/nibzard/timeblock/internal/task"
	"github.com/nibzard/timeblock/internal/theme"
	"github.com/nibzard/timeblock/internal/timeline"
)

// ErrNoTTY is returned by Run when stdout is not a terminal.
var ErrNoTTY = errors.New("tui requires a TTY")

// viewCycle is the order the v key steps through.
var viewCycle = []int{15, 30, 60, 5}

// Run starts the chart viewer on a started app. The app is flushed when the
// viewer quits.
func Run(ctx context.Context, a *app.App) error {
	if !IsTTY(os.Stdout) {
		return ErrNoTTY
	}
	program := tea.NewProgram(NewModel(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(*Model); ok && m.flushErr != nil {
		return m.flushErr
	}
	return nil
}

// Model is the bubbletea model for the chart viewer.
type Model struct {
	ctx    context.Context
	app    *app.App
	styles Styles

	proj     *timeline.Projection
	projErr  error
	width    int
	cursor   int
	offset   int
	confirm  string // id awaiting delete confirmation
	editor   *editor
	status   string
	err      error
	showHelp bool
	quitting bool
	flushErr error
}

// NewModel creates a viewer for a.
func NewModel(ctx context.Context, a *app.App) *Model {
	m := &Model{ctx: ctx, app: a, styles: NewStyles(a.Theme())}
	m.refresh()
	m.scrollToFirstTask()
	return m
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if m.editor != nil {
			return m.updateEditor(msg)
		}
		if m.confirm != "" {
			return m.updateConfirm(msg)
		}
		return m.updateKey(msg)
	}
	if m.editor != nil {
		return m, m.editor.update(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "ctrl+c", "q":
		return m, m.quit()
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "left", "h":
		m.offset = max(m.offset-1, 0)
	case "right", "l":
		if m.proj != nil {
			m.offset = min(m.offset+1, max(len(m.proj.Columns)-1, 0))
		}
	case "home", "g":
		m.offset = 0
	case "d", "delete":
		if r, ok := m.selected(); ok {
			m.confirm = r.ID
			m.status = fmt.Sprintf("Delete %q? (y/n)", r.Name)
		}
	case "a":
		return m, m.openAdd()
	case "e", "enter":
		return m, m.openEdit()
	case "x":
		m.toggleDone()
	case "t":
		m.cycleTheme()
	case "v":
		m.cycleView()
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.confirm
	switch msg.String() {
	case "y", "Y":
		m.confirm = ""
		if err := m.app.DeleteTask(id); err != nil {
			m.err = err
			m.status = ""
			return m, nil
		}
		m.status = "Deleted " + id
		m.refresh()
	case "n", "N", "esc":
		m.confirm = ""
		m.status = "Delete cancelled"
	case "ctrl+c":
		return m, m.quit()
	}
	return m, nil
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	if err := m.app.Flush(m.ctx); err != nil {
		m.flushErr = err
	}
	return tea.Quit
}

func (m *Model) refresh() {
	m.proj, m.projErr = m.app.Projection()
	if m.proj != nil {
		m.cursor = min(m.cursor, len(m.proj.Rows)-1)
		m.cursor = max(m.cursor, 0)
	}
}

// scrollToFirstTask starts the view at the lead-in of the first row rather
// than at an arbitrary window edge.
func (m *Model) scrollToFirstTask() {
	if m.proj == nil || len(m.proj.Rows) == 0 {
		return
	}
	first := m.proj.Rows[0].Offset
	for _, r := range m.proj.Rows {
		first = min(first, r.Offset)
	}
	m.offset = max(int(first)-m.proj.Mode.UpperEvery, 0)
}

func (m *Model) moveCursor(delta int) {
	if m.proj == nil || len(m.proj.Rows) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.proj.Rows)-1)
}

func (m *Model) selectID(id string) {
	if m.proj == nil {
		return
	}
	for i, r := range m.proj.Rows {
		if r.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m *Model) selected() (timeline.Row, bool) {
	if m.proj == nil || m.cursor < 0 || m.cursor >= len(m.proj.Rows) {
		return timeline.Row{}, false
	}
	return m.proj.Rows[m.cursor], true
}

func (m *Model) toggleDone() {
	r, ok := m.selected()
	if !ok {
		return
	}
	progress := task.MaxProgress
	if r.Progress >= task.MaxProgress {
		progress = task.MinProgress
	}
	if _, err := m.app.UpdateTask(r.ID, task.Patch{Progress: &progress}); err != nil {
		m.err = err
		return
	}
	m.status = fmt.Sprintf("%s: %d%%", r.Name, progress)
	m.refresh()
}

func (m *Model) cycleTheme() {
	name, next := theme.Next(m.app.Theme())
	if err := m.app.SetTheme(m.ctx, next); err != nil {
		m.err = err
		return
	}
	m.styles = NewStyles(m.app.Theme())
	m.status = "Theme: " + name
}

func (m *Model) cycleView() {
	current := m.app.ViewMode()
	idx := 0
	for i, minutes := range viewCycle {
		if mode, err := timeline.ModeForGranularity(minutes); err == nil && mode.Name == current.Name {
			idx = i + 1
			break
		}
	}
	mode, err := timeline.ModeForGranularity(viewCycle[idx%len(viewCycle)])
	if err == nil {
		err = m.app.SetViewMode(mode.WithColumnWidth(current.ColumnWidth))
	}
	if err != nil {
		m.err = err
		return
	}
	m.status = "View: " + mode.Name
	m.offset = 0
	m.refresh()
	m.scrollToFirstTask()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("timeblock") + "  " + m.styles.Muted.Render(theme.NameOf(m.app.Theme())) + "\n\n")

	if m.showHelp {
		writeHelp(&b)
		return b.String()
	}
	if m.editor != nil {
		m.viewEditor(&b)
		return b.String()
	}
	if m.projErr != nil {
		b.WriteString(m.styles.Error.Render("Cannot draw chart: "+m.projErr.Error()) + "\n")
		return b.String()
	}

	b.WriteString(RenderView(m.proj, m.styles, View{Width: m.width, Offset: m.offset, Cursor: m.cursor}))
	if m.err != nil {
		b.WriteString(m.styles.Error.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString(m.styles.Muted.Render("? help · q quit") + "\n")
	return b.String()
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  j/k, up/down     Select task\n")
	b.WriteString("  h/l, left/right  Scroll columns\n")
	b.WriteString("  g, home          Scroll to window start\n")
	b.WriteString("  a                Add task\n")
	b.WriteString("  e, enter         Edit selected task\n")
	b.WriteString("  x                Toggle task complete\n")
	b.WriteString("  d, delete        Delete task (asks y/n)\n")
	b.WriteString("  t                Next theme\n")
	b.WriteString("  v                Next view scale\n")
	b.WriteString("  ?                Toggle this help screen\n")
	b.WriteString("  q, ctrl+c        Save and quit\n\n")
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
