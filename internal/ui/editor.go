package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nibzard/timeblock/internal/app"
	"github.com/nibzard/timeblock/internal/task"
	"github.com/nibzard/timeblock/internal/timeval"
)

const (
	fieldName = iota
	fieldStart
	fieldEnd
	fieldProgress
	fieldAfter
	fieldCount
)

var fieldLabels = [fieldCount]string{"Name", "Start", "End", "Progress", "After"}

// editor is the add/edit form. id is empty when adding.
type editor struct {
	id     string
	inputs []textinput.Model
	focus  int
	err    error
}

func newEditor(id string, values [fieldCount]string) *editor {
	e := &editor{id: id, inputs: make([]textinput.Model, fieldCount)}
	for i := range e.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Width = 32
		ti.CharLimit = 120
		ti.SetValue(values[i])
		e.inputs[i] = ti
	}
	e.inputs[fieldStart].Placeholder = "YYYY-MM-DD HH:mm"
	e.inputs[fieldEnd].Placeholder = "YYYY-MM-DD HH:mm"
	e.inputs[fieldProgress].CharLimit = 3
	e.inputs[fieldAfter].Placeholder = "task-1,task-2"
	e.inputs[fieldName].Focus()
	return e
}

// addEditor opens a blank hour-long block right after the selected row, or
// at the next whole hour when nothing is selected.
func addEditor(after time.Time, ok bool, now time.Time) *editor {
	start := after
	if !ok {
		start = time.Date(now.Year(), now.Month(), now.Day(), now.Hour()+1, 0, 0, 0, now.Location())
	}
	return newEditor("", [fieldCount]string{
		fieldStart:    timeval.Format(start),
		fieldEnd:      timeval.Format(start.Add(time.Hour)),
		fieldProgress: "0",
	})
}

func editEditor(t task.Task) *editor {
	return newEditor(t.ID, [fieldCount]string{
		fieldName:     t.Name,
		fieldStart:    timeval.Format(t.Start),
		fieldEnd:      timeval.Format(t.End),
		fieldProgress: strconv.Itoa(t.Progress),
		fieldAfter:    t.Dependencies.String(),
	})
}

func (e *editor) value(field int) string {
	return strings.TrimSpace(e.inputs[field].Value())
}

func (e *editor) move(delta int) tea.Cmd {
	e.inputs[e.focus].Blur()
	e.focus = (e.focus + delta + fieldCount) % fieldCount
	e.inputs[e.focus].Focus()
	return textinput.Blink
}

// update passes msg to the focused field.
func (e *editor) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	e.inputs[e.focus], cmd = e.inputs[e.focus].Update(msg)
	return cmd
}

// submit writes the form through a. The returned task is the committed one.
func (e *editor) submit(a *app.App) (task.Task, error) {
	progress, err := strconv.Atoi(e.value(fieldProgress))
	if err != nil {
		return task.Task{}, errors.New("progress must be a whole number")
	}
	name, start, end := e.value(fieldName), e.value(fieldStart), e.value(fieldEnd)
	deps := task.ParseDependencies(e.value(fieldAfter))

	if e.id == "" {
		return a.AddTask(task.Draft{
			Name:         name,
			Start:        start,
			End:          end,
			Progress:     &progress,
			Dependencies: deps,
		})
	}
	return a.UpdateTask(e.id, task.Patch{
		Name:         &name,
		Start:        &start,
		End:          &end,
		Progress:     &progress,
		Dependencies: &deps,
	})
}

func (e *editor) title() string {
	if e.id == "" {
		return "New task"
	}
	return "Edit " + e.id
}

func (m *Model) openAdd() tea.Cmd {
	r, ok := m.selected()
	m.editor = addEditor(r.End, ok, m.app.Now())
	return textinput.Blink
}

func (m *Model) openEdit() tea.Cmd {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	t, ok := m.app.Task(r.ID)
	if !ok {
		return nil
	}
	m.editor = editEditor(t)
	return textinput.Blink
}

func (m *Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.editor
	switch msg.String() {
	case "ctrl+c":
		return m, m.quit()
	case "esc":
		m.editor = nil
		m.status = "Edit cancelled"
		return m, nil
	case "tab", "down":
		return m, e.move(1)
	case "shift+tab", "up":
		return m, e.move(-1)
	case "enter":
		t, err := e.submit(m.app)
		if err != nil {
			e.err = err
			return m, nil
		}
		m.editor = nil
		if e.id == "" {
			m.status = fmt.Sprintf("Added %s: %s", t.ID, t.Name)
		} else {
			m.status = fmt.Sprintf("Updated %s: %s", t.ID, t.Name)
		}
		m.refresh()
		m.selectID(t.ID)
		return m, nil
	}
	return m, e.update(msg)
}

func (m *Model) viewEditor(b *strings.Builder) {
	e := m.editor
	b.WriteString(m.styles.Upper.Render(e.title()) + "\n\n")
	for i, in := range e.inputs {
		label := fmt.Sprintf("%-9s", fieldLabels[i]+":")
		if i == e.focus {
			label = m.styles.Selected.Render(label)
		} else {
			label = m.styles.Label.Render(label)
		}
		b.WriteString("  " + label + " " + in.View() + "\n")
	}
	b.WriteString("\n")
	if e.err != nil {
		b.WriteString(m.styles.Error.Render(e.err.Error()) + "\n")
	}
	b.WriteString(m.styles.Muted.Render("enter save · tab next field · esc cancel") + "\n")
}
