package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nibzard/timeblock/internal/app"
	"github.com/nibzard/timeblock/internal/theme"
	"github.com/nibzard/timeblock/internal/timeline"
	"github.com/nibzard/timeblock/internal/ui"
)

// viewCommand prints the chart once.
func (e *env) viewCommand(a *app.App, args []string) error {
	fs := flag.NewFlagSet("timeblock view", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	width := fs.Int("width", terminalWidth(), "Maximum line width (0 = no limit)")
	mode := fs.String("mode", "", "View mode to switch to and keep (5-Minute, 15-Minute, 30-Minute, Hour)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if *mode != "" {
		m, err := timeline.ModeByName(*mode)
		if err != nil {
			return err
		}
		if err := a.SetViewMode(m.WithColumnWidth(a.ViewMode().ColumnWidth)); err != nil {
			return err
		}
	}

	p, err := a.Projection()
	if err != nil {
		return err
	}
	fmt.Fprint(e.out, ui.Render(p, a.Theme(), *width))
	return nil
}

// terminalWidth reads $COLUMNS, the only width source that works without a
// TTY.
func terminalWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return 0
}

// tuiCommand opens the interactive chart. Console logging is redirected to
// the session log, or dropped, while the screen is owned by the viewer.
func (e *env) tuiCommand(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("timeblock tui", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if !ui.IsTTY(e.out) {
		return fmt.Errorf("%w; use 'timeblock view' to print the chart", ui.ErrNoTTY)
	}

	var sink io.Writer = io.Discard
	if e.session != nil {
		sink = e.session.Writer()
	}
	e.logger.SetOutput(sink)
	defer e.logger.SetOutput(e.consoleWriter())

	return ui.Run(ctx, a)
}

func (e *env) consoleWriter() io.Writer {
	if e.session != nil {
		return io.MultiWriter(e.errOut, e.session.Writer())
	}
	return e.errOut
}

// resetCommand restores the sample tasks and optionally the default theme.
func (e *env) resetCommand(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("timeblock reset", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	withTheme := fs.Bool("theme", false, "Also reset the theme")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if err := a.ResetToDefaults(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Reset to %d sample tasks\n", len(a.Tasks()))
	if *withTheme {
		if err := a.ResetTheme(ctx); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Theme reset to %s\n", theme.NameOf(a.Theme()))
	}
	return nil
}

// themeCommand shows or changes the theme.
//
//	theme                       show the current colors and presets
//	theme <preset> | next       switch preset
//	theme reset                 back to the configured default
//	theme set role=#hex ...     change individual roles
func (e *env) themeCommand(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		e.printTheme(a.Theme())
		return nil
	}

	switch args[0] {
	case "next":
		_, next := theme.Next(a.Theme())
		if err := a.SetTheme(ctx, next); err != nil {
			return err
		}
	case "reset":
		if err := a.ResetTheme(ctx); err != nil {
			return err
		}
	case "set":
		if len(args) < 2 {
			return errors.New("theme set: expected role=#hex")
		}
		t := a.Theme()
		for _, kv := range args[1:] {
			role, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("theme set: %q is not role=#hex", kv)
			}
			var err error
			if t, err = t.With(role, value); err != nil {
				return fmt.Errorf("theme set: %w", err)
			}
		}
		if err := a.SetTheme(ctx, t); err != nil {
			return err
		}
	default:
		if len(args) > 1 {
			return fmt.Errorf("unexpected arguments: %v", args[1:])
		}
		t, ok := theme.Preset(strings.ToLower(args[0]))
		if !ok {
			return fmt.Errorf("unknown theme %q (presets: %s)", args[0], strings.Join(theme.PresetNames(), ", "))
		}
		if err := a.SetTheme(ctx, t); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.out, "Theme: %s\n", theme.NameOf(a.Theme()))
	return nil
}

func (e *env) printTheme(t theme.Theme) {
	current := theme.NameOf(t)
	fmt.Fprintf(e.out, "Theme: %s\n\n", current)
	for _, r := range theme.Roles() {
		v, _ := t.Get(r.Key)
		fmt.Fprintf(e.out, "  %-18s %s\n", r.Label, v)
	}
	fmt.Fprintln(e.out)
	fmt.Fprintln(e.out, "Presets:")
	for _, name := range theme.PresetNames() {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(e.out, "  %s %s\n", marker, name)
	}
}
