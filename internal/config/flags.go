package config

import (
	"flag"
	"io"
)

// flagFields maps flag names to the config keys they set.
var flagFields = map[string]string{
	"data-dir":       "data_dir",
	"backend":        "backend",
	"autosave-ms":    "autosave_delay_ms",
	"granularity":    "granularity_minutes",
	"lead-in":        "lead_in_minutes",
	"trail-out":      "trail_out_minutes",
	"column-width":   "column_width",
	"theme":          "theme",
	"log-level":      "log_level",
	"log-format":     "log_format",
	"log-timestamps": "log_timestamps",
	"log-caller":     "log_caller",
	"log-dir":        "log_dir",
}

// RegisterFlags defines the global flags on fs, bound to cfg. Current cfg
// values become the flag defaults.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the chart data")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Storage backend: file or sqlite")
	fs.IntVar(&cfg.AutosaveDelayMS, "autosave-ms", cfg.AutosaveDelayMS, "Quiet period before an autosave, in milliseconds")
	fs.IntVar(&cfg.GranularityMinutes, "granularity", cfg.GranularityMinutes, "Column size in minutes")
	fs.IntVar(&cfg.LeadInMinutes, "lead-in", cfg.LeadInMinutes, "Minutes shown before the earliest task")
	fs.IntVar(&cfg.TrailOutMinutes, "trail-out", cfg.TrailOutMinutes, "Minutes shown after the latest task")
	fs.IntVar(&cfg.ColumnWidth, "column-width", cfg.ColumnWidth, "Column width in terminal cells")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "Theme preset for a fresh chart")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text, json, logfmt")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Include timestamps in logs")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Include caller location in logs")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Write session logs under this directory")
}

// parseFlags defines and parses CLI flags. If sources is non-nil, flags that
// were set explicitly are recorded.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("timeblock", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
	}
	RegisterFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if sources != nil {
		fs.Visit(func(f *flag.Flag) {
			if field, ok := flagFields[f.Name]; ok {
				sources[field] = SourceFlag
			}
		})
	}
	return nil
}
