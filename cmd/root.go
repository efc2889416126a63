// Package cmd implements the CLI command structure for timeblock.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/nibzard/timeblock/internal/app"
	"github.com/nibzard/timeblock/internal/config"
	"github.com/nibzard/timeblock/internal/logging"
	"github.com/nibzard/timeblock/internal/persist"
)

// Version is set via ldflags at build time.
var Version = "dev"

// env carries what every command needs.
type env struct {
	cfg     *config.Config
	cws     *config.ConfigWithSources
	out     io.Writer
	errOut  io.Writer
	logger  *log.Logger
	session *logging.SessionLog
	now     func() time.Time
}

// Run executes the timeblock CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("timeblock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, stdout)
		return nil
	}

	e := &env{cfg: cws.Config, cws: cws, out: stdout, errOut: stderr, now: time.Now}
	if *showVersion {
		return e.versionCommand()
	}

	subcommand := "ls"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "version":
		return e.versionCommand()
	case "help":
		printUsage(fs, stdout)
		return nil
	case "config":
		return e.configCommand(remainingArgs)
	case "logs":
		return e.logsCommand(remainingArgs)
	}

	if err := e.openLogger(); err != nil {
		return err
	}
	defer e.session.Close()

	switch subcommand {
	case "ls", "list":
		return e.withApp(ctx, func(a *app.App) error { return e.lsCommand(a, remainingArgs) })
	case "add":
		return e.withApp(ctx, func(a *app.App) error { return e.addCommand(a, remainingArgs) })
	case "update", "set":
		return e.withApp(ctx, func(a *app.App) error { return e.updateCommand(a, remainingArgs) })
	case "rm", "delete":
		return e.withApp(ctx, func(a *app.App) error { return e.rmCommand(a, remainingArgs) })
	case "deps":
		return e.withApp(ctx, func(a *app.App) error { return e.depsCommand(a, remainingArgs) })
	case "view":
		return e.withApp(ctx, func(a *app.App) error { return e.viewCommand(a, remainingArgs) })
	case "tui":
		return e.withApp(ctx, func(a *app.App) error { return e.tuiCommand(ctx, a, remainingArgs) })
	case "reset":
		return e.withApp(ctx, func(a *app.App) error { return e.resetCommand(ctx, a, remainingArgs) })
	case "import":
		return e.withApp(ctx, func(a *app.App) error { return e.importCommand(a, remainingArgs) })
	case "export":
		return e.withApp(ctx, func(a *app.App) error { return e.exportCommand(a, remainingArgs) })
	case "theme":
		return e.withApp(ctx, func(a *app.App) error { return e.themeCommand(ctx, a, remainingArgs) })
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// openLogger builds the console logger, teeing into a session log file when
// log_dir is configured.
func (e *env) openLogger() error {
	opts := logging.Options{
		Level:      e.cfg.LogLevel,
		Format:     e.cfg.LogFormat,
		Timestamps: e.cfg.LogTimestamps,
		Caller:     e.cfg.LogCaller,
		Prefix:     "timeblock",
	}
	w := e.errOut
	if e.cfg.LogDir != "" {
		session, err := logging.OpenSessionLog(e.cfg.LogDir, e.cfg.DataDir)
		if err != nil {
			return fmt.Errorf("opening session log: %w", err)
		}
		e.session = session
		w = io.MultiWriter(e.errOut, session.Writer())
	}
	e.logger = logging.New(w, opts)
	return nil
}

// openBackend opens the configured key/value store.
func (e *env) openBackend() (persist.Backend, error) {
	switch e.cfg.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return persist.OpenSQLite(e.cfg.SQLitePath())
	default:
		return persist.NewFileBackend(e.cfg.DataDir)
	}
}

// newApp opens storage and starts the chart. The returned close function
// flushes pending changes and releases the backend.
func (e *env) newApp(ctx context.Context) (*app.App, func() error, error) {
	backend, err := e.openBackend()
	if err != nil {
		return nil, nil, err
	}

	padding := e.cfg.Padding()
	opts := app.Options{
		Snapshots:     persist.NewSnapshotStore(backend),
		Themes:        persist.NewThemeStore(backend),
		Logger:        e.logger,
		Now:           e.now,
		AutosaveDelay: e.cfg.AutosaveDelay(),
		ColumnWidth:   e.cfg.ColumnWidth,
		Padding:       &padding,
		Theme:         e.cfg.DefaultThemeColors(),
	}
	// An explicitly configured granularity wins over the saved view mode.
	if e.cws.Sources["granularity_minutes"] != config.SourceDefault {
		mode, err := e.cfg.ViewMode()
		if err != nil {
			backend.Close()
			return nil, nil, err
		}
		opts.Mode = mode
	}

	a, err := app.New(opts)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	if err := a.Start(ctx); err != nil {
		backend.Close()
		return nil, nil, err
	}

	closeFn := func() error {
		// Flush even when ctx was cancelled by a signal.
		err := a.Close(context.WithoutCancel(ctx))
		if cerr := backend.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return a, closeFn, nil
}

// withApp runs fn against a started app and always closes it.
func (e *env) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, closeFn, err := e.newApp(ctx)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := closeFn(); err != nil && runErr == nil {
		return fmt.Errorf("saving chart: %w", err)
	}
	return runErr
}

// versionCommand prints version information.
func (e *env) versionCommand() error {
	fmt.Fprintf(e.out, "timeblock version %s\n", Version)
	return nil
}

// configCommand shows the effective configuration and where each value came
// from.
func (e *env) configCommand(args []string) error {
	fs := flag.NewFlagSet("timeblock config", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	example := fs.Bool("example", false, "Print an example config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if *example {
		fmt.Fprint(e.out, config.ExampleConfig())
		return nil
	}

	var values map[string]interface{}
	data, err := toml.Marshal(e.cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := toml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	if file := e.cws.GetConfigFile(); file != "" {
		fmt.Fprintf(e.out, "Config file: %s\n\n", file)
	} else {
		fmt.Fprintln(e.out, "Config file: (none)")
		fmt.Fprintln(e.out)
	}
	keys := make([]string, 0, len(e.cws.Sources))
	for k := range e.cws.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			v = ""
		}
		if s, isString := v.(string); isString {
			v = fmt.Sprintf("%q", s)
		}
		fmt.Fprintf(e.out, "%-20s = %-24v # %s\n", k, v, e.cws.Sources[k])
	}
	return nil
}

// logsCommand prints the tail of the latest session log for the data dir.
func (e *env) logsCommand(args []string) error {
	fs := flag.NewFlagSet("timeblock logs", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	n := fs.Int("n", 50, "Number of lines to show (0 = all)")
	pathOnly := fs.Bool("path", false, "Print the log file path only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if e.cfg.LogDir == "" {
		return fmt.Errorf("log_dir is not set")
	}

	dir, err := logging.SessionDir(e.cfg.LogDir, e.cfg.DataDir)
	if err != nil {
		return err
	}
	latest, err := logging.FindLatest(dir)
	if err != nil {
		return err
	}
	if latest == "" {
		fmt.Fprintln(e.out, "No log files found.")
		return nil
	}
	if *pathOnly {
		fmt.Fprintln(e.out, latest)
		return nil
	}
	return logging.Tail(e.out, latest, *n)
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "timeblock - plan the day as a chart of dependent time blocks")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  timeblock [global options] [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ls                    List tasks (default command)")
	fmt.Fprintln(w, "  add                   Add a task")
	fmt.Fprintln(w, "  update <id>           Change fields of a task")
	fmt.Fprintln(w, "  rm <id>...            Delete tasks")
	fmt.Fprintln(w, "  deps <id> [add|rm|clear <dep>...]")
	fmt.Fprintln(w, "                        Show or edit prerequisites")
	fmt.Fprintln(w, "  view                  Print the chart")
	fmt.Fprintln(w, "  tui                   Open the interactive chart")
	fmt.Fprintln(w, "  reset                 Replace tasks with the sample day")
	fmt.Fprintln(w, "  import <file>         Replace tasks from a JSON or YAML file")
	fmt.Fprintln(w, "  export                Write tasks as JSON, YAML or iCalendar")
	fmt.Fprintln(w, "  theme [name|next|reset|set role=#hex...]")
	fmt.Fprintln(w, "                        Show or change colors")
	fmt.Fprintln(w, "  config                Show effective configuration")
	fmt.Fprintln(w, "  logs                  Show the latest session log")
	fmt.Fprintln(w, "  version               Show version information")
	fmt.Fprintln(w, "  help                  Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Times are \"YYYY-MM-DD HH:mm\" or \"HH:mm\" for today.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Environment variables use the %s prefix, e.g. %sBACKEND=sqlite.\n", config.EnvPrefix, config.EnvPrefix)
}

// splitLeadingArg lets a positional argument come before the flags, as in
// "update task-1 -progress 50".
func splitLeadingArg(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}
