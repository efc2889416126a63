package cmd

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nibzard/timeblock/internal/app"
	"github.com/nibzard/timeblock/internal/export"
	"github.com/nibzard/timeblock/internal/persist"
	"github.com/nibzard/timeblock/internal/timeline"
)

const formatICS = "ics"

// importCommand replaces every task with the contents of a snapshot file.
// The file is checked in full before anything changes.
func (e *env) importCommand(a *app.App, args []string) error {
	fs := flag.NewFlagSet("timeblock import", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	formatName := fs.String("format", "", "Input format: json or yaml (default from extension)")

	path, rest := splitLeadingArg(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	positional := fs.Args()
	if path == "" && len(positional) > 0 {
		path, positional = positional[0], positional[1:]
	}
	if len(positional) > 0 {
		return fmt.Errorf("unexpected arguments: %v", positional)
	}
	if path == "" {
		return errors.New("import: file required")
	}

	format := persist.FormatFromPath(path)
	if *formatName != "" {
		f, err := persist.ParseFormat(*formatName)
		if err != nil {
			return err
		}
		format = f
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer file.Close()
	snap, err := persist.Decode(file, format)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	if err := a.ReplaceTasks(snap.Tasks); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	if snap.ViewMode != "" {
		if mode, err := timeline.ModeByName(snap.ViewMode); err == nil {
			if err := a.SetViewMode(mode.WithColumnWidth(a.ViewMode().ColumnWidth)); err != nil {
				return err
			}
		} else {
			e.logger.Warn("imported view mode ignored", "err", err)
		}
	}
	fmt.Fprintf(e.out, "Imported %d tasks from %s\n", len(snap.Tasks), path)
	return nil
}

// exportCommand writes the chart to stdout or a file.
func (e *env) exportCommand(a *app.App, args []string) error {
	fs := flag.NewFlagSet("timeblock export", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	formatName := fs.String("format", "", "Output format: json, yaml or ics (default from -o, else json)")
	output := fs.String("o", "", "Write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	name := strings.ToLower(strings.TrimSpace(*formatName))
	if name == "" && *output != "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(*output)), ".")
		if name != formatICS {
			name = string(persist.FormatFromPath(*output))
		}
	}

	var buf bytes.Buffer
	if name == formatICS {
		buf.WriteString(export.BuildCalendar(a.Tasks(), e.now()))
	} else {
		format, err := persist.ParseFormat(name)
		if err != nil {
			return fmt.Errorf("%w (or ics)", err)
		}
		if err := persist.Encode(&buf, a.Snapshot(), format); err != nil {
			return err
		}
	}

	if *output == "" {
		_, err := io.Copy(e.out, &buf)
		return err
	}
	if err := os.WriteFile(*output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(e.out, "Exported %d tasks to %s\n", len(a.Tasks()), *output)
	return nil
}
