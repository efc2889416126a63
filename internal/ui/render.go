package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/nibzard/timeblock/internal/theme"
	"github.com/nibzard/timeblock/internal/timeline"
	"github.com/nibzard/timeblock/internal/timeval"
)

const (
	minLabelWidth = 8
	maxLabelWidth = 24
	gutter        = " │ "
	// cursorWidth is the "> " marker in front of each row.
	cursorWidth = 2
)

// Cell glyphs.
const (
	glyphDone     = '█'
	glyphLeft     = '░'
	glyphBoundary = '┊'
)

// View selects the visible part of a projection.
type View struct {
	// Width is the terminal width. Zero shows every column.
	Width int
	// Offset is the first visible column.
	Offset int
	// Cursor is the selected row, or -1.
	Cursor int
}

// Render draws the whole chart for p at the given terminal width with no
// selection.
func Render(p *timeline.Projection, t theme.Theme, width int) string {
	return RenderView(p, NewStyles(t), View{Width: width, Cursor: -1})
}

// RenderView draws the header tiers, one bar per row, and a detail line for
// the selected row.
func RenderView(p *timeline.Projection, s Styles, v View) string {
	if p == nil {
		return ""
	}
	labelW := labelWidth(p)
	first, count := visibleColumns(p, v, labelW)
	colW := p.Mode.ColumnWidth
	gridW := count * colW
	indent := strings.Repeat(" ", cursorWidth+labelW)

	var b strings.Builder
	b.WriteString(indent + s.Grid.Render(gutter) + s.Upper.Render(upperLine(p, first, count)) + "\n")
	b.WriteString(indent + s.Grid.Render(gutter) + s.Lower.Render(lowerLine(p, first, count)) + "\n")

	if len(p.Rows) == 0 {
		b.WriteString("\n" + s.Muted.Render("  No tasks.") + "\n")
	}
	for i, row := range p.Rows {
		marker, label := "  ", s.Label
		if i == v.Cursor {
			marker, label = "> ", s.Selected
		}
		name := runewidth.FillRight(runewidth.Truncate(row.Name, labelW, "…"), labelW)
		b.WriteString(label.Render(marker+name) + s.Grid.Render(gutter))
		b.WriteString(renderCells(barCells(p, row, first, gridW), s))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if v.Cursor >= 0 && v.Cursor < len(p.Rows) {
		b.WriteString(detailLine(p.Rows[v.Cursor], s) + "\n")
	}
	b.WriteString(s.Muted.Render(windowLine(p, first, count)) + "\n")
	return b.String()
}

func labelWidth(p *timeline.Projection) int {
	w := minLabelWidth
	for _, r := range p.Rows {
		w = max(w, runewidth.StringWidth(r.Name))
	}
	return min(w, maxLabelWidth)
}

// visibleColumns clamps the view to the grid and returns the first column
// and how many fit.
func visibleColumns(p *timeline.Projection, v View, labelW int) (int, int) {
	total := len(p.Columns)
	if total == 0 {
		return 0, 0
	}
	count := total
	if v.Width > 0 {
		avail := v.Width - cursorWidth - labelW - runewidth.StringWidth(gutter)
		count = max(1, avail/p.Mode.ColumnWidth)
	}
	count = min(count, total)
	first := min(max(v.Offset, 0), total-count)
	return first, count
}

// upperLine places coarse labels at boundary columns. When the first visible
// column is not a boundary, the label of the boundary it belongs to is shown
// at the left edge.
func upperLine(p *timeline.Projection, first, count int) string {
	line := blank(count * p.Mode.ColumnWidth)
	if count == 0 {
		return ""
	}
	if p.Columns[first].Upper == "" {
		for i := first - 1; i >= 0; i-- {
			if p.Columns[i].Upper != "" {
				place(line, 0, p.Columns[i].Upper)
				break
			}
		}
	}
	for i := first; i < first+count; i++ {
		if c := p.Columns[i]; c.Upper != "" {
			place(line, (i-first)*p.Mode.ColumnWidth, c.Upper)
		}
	}
	return strings.TrimRight(string(line), " ")
}

// lowerLine labels every column, truncated to leave one cell of spacing.
func lowerLine(p *timeline.Projection, first, count int) string {
	colW := p.Mode.ColumnWidth
	line := blank(count * colW)
	for i := first; i < first+count; i++ {
		label := p.Columns[i].Lower
		if colW > 1 {
			label = runewidth.Truncate(label, colW-1, "")
		}
		place(line, (i-first)*colW, label)
	}
	return strings.TrimRight(string(line), " ")
}

type cellKind int

const (
	cellEmpty cellKind = iota
	cellBoundary
	cellDone
	cellLeft
)

type cell struct {
	kind  cellKind
	glyph rune
}

// barCells lays a row out over the visible grid. Bar edges are rounded to
// whole cells; the done part is proportional to progress.
func barCells(p *timeline.Projection, row timeline.Row, first, gridW int) []cell {
	colW := p.Mode.ColumnWidth
	cells := make([]cell, gridW)
	for i := range cells {
		cells[i] = cell{kind: cellEmpty, glyph: ' '}
	}
	for i := 0; i*colW < gridW; i++ {
		if p.Columns[first+i].Boundary {
			cells[i*colW] = cell{kind: cellBoundary, glyph: glyphBoundary}
		}
	}

	origin := float64(first * colW)
	start := int(math.Round(row.Offset*float64(colW) - origin))
	end := int(math.Round((row.Offset+row.Span)*float64(colW) - origin))
	if end <= start && row.Span > 0 {
		end = start + 1
	}
	doneEnd := start + int(math.Round(float64(end-start)*float64(row.Progress)/100))

	for i := max(start, 0); i < min(end, gridW); i++ {
		if i < doneEnd {
			cells[i] = cell{kind: cellDone, glyph: glyphDone}
		} else {
			cells[i] = cell{kind: cellLeft, glyph: glyphLeft}
		}
	}
	return cells
}

// renderCells styles runs of equal kind together.
func renderCells(cells []cell, s Styles) string {
	var b, run strings.Builder
	flush := func(kind cellKind) {
		if run.Len() == 0 {
			return
		}
		b.WriteString(styleFor(kind, s).Render(run.String()))
		run.Reset()
	}
	for i, c := range cells {
		if i > 0 && cells[i-1].kind != c.kind {
			flush(cells[i-1].kind)
		}
		run.WriteRune(c.glyph)
	}
	if len(cells) > 0 {
		flush(cells[len(cells)-1].kind)
	}
	return strings.TrimRight(b.String(), " ")
}

func styleFor(kind cellKind, s Styles) lipgloss.Style {
	switch kind {
	case cellDone:
		return s.Done
	case cellLeft:
		return s.Left
	case cellBoundary:
		return s.Grid
	default:
		return lipgloss.NewStyle()
	}
}

func detailLine(r timeline.Row, s Styles) string {
	span := r.Start.Format("15:04") + "-" + r.End.Format("15:04")
	if timeval.FormatDate(r.Start) != timeval.FormatDate(r.End) {
		span = timeval.Format(r.Start) + " - " + timeval.Format(r.End)
	}
	line := s.Selected.Render(r.Name) + "  " + span + fmt.Sprintf("  %d%%", r.Progress)
	if len(r.Dependencies) == 0 {
		return line
	}
	deps := make([]string, 0, len(r.Dependencies))
	for _, d := range r.Dependencies {
		if d.Resolved {
			deps = append(deps, d.Label())
		} else {
			deps = append(deps, s.Dangling.Render(d.Label()+" (missing)"))
		}
	}
	return line + s.Muted.Render("  after: ") + strings.Join(deps, ", ")
}

func windowLine(p *timeline.Projection, first, count int) string {
	line := fmt.Sprintf("%s · %s to %s · columns %d-%d of %d",
		p.Mode.Name, timeval.Format(p.Start), timeval.Format(p.End), first+1, first+count, len(p.Columns))
	if p.Truncated {
		line += " (window truncated)"
	}
	return line
}

func blank(n int) []rune {
	line := make([]rune, n)
	for i := range line {
		line[i] = ' '
	}
	return line
}

// place writes text into line at pos, clipped at the end of the line.
func place(line []rune, pos int, text string) {
	for _, r := range text {
		if pos >= len(line) {
			return
		}
		line[pos] = r
		pos++
	}
}
