package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# timeblock configuration file
# Values can be overridden by TIMEBLOCK_* environment variables or CLI flags

# Where the chart and theme are stored (supports ~ expansion and %VAR% on Windows)
data_dir = "~/.timeblock"

# Storage backend: "file" (one JSON document per key) or "sqlite"
backend = "file"

# Quiet period before changes are written, in milliseconds
autosave_delay_ms = 1000

# Column size in minutes: a divisor of 60 (5, 10, 15, 30...) or 60 for hourly columns
granularity_minutes = 15

# Margin around the tasks before the window is rounded to whole hours
lead_in_minutes = 60
trail_out_minutes = 120

# Column width in terminal cells
column_width = 6

# Theme preset used until one is saved: default, dark, ocean, forest
theme = "default"

# Logging
log_level = "info"      # debug, info, warn, error
log_format = "text"     # text, json, logfmt
log_timestamps = false
log_caller = false

# Session log directory (disabled when empty)
# log_dir = "~/.timeblock/logs"
`
}
