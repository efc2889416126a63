package config

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were read, user file first.
	Files []string
}

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Default values.
const (
	DefaultDataDir            = "~/.timeblock"
	DefaultBackend            = BackendFile
	DefaultAutosaveDelayMS    = 1000
	DefaultGranularityMinutes = 15
	DefaultLeadInMinutes      = 60
	DefaultTrailOutMinutes    = 120
	DefaultColumnWidth        = 6
	DefaultTheme              = "default"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Config holds all configuration.
type Config struct {
	// Storage
	DataDir         string `toml:"data_dir"`
	Backend         string `toml:"backend"`
	AutosaveDelayMS int    `toml:"autosave_delay_ms"`

	// Chart
	GranularityMinutes int    `toml:"granularity_minutes"`
	LeadInMinutes      int    `toml:"lead_in_minutes"`
	TrailOutMinutes    int    `toml:"trail_out_minutes"`
	ColumnWidth        int    `toml:"column_width"`
	Theme              string `toml:"theme"`

	// Logging
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`
	// LogDir enables per-session log files when set.
	LogDir string `toml:"log_dir"`
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"data_dir",
		"backend",
		"autosave_delay_ms",
		"granularity_minutes",
		"lead_in_minutes",
		"trail_out_minutes",
		"column_width",
		"theme",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
		"log_dir",
	}
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.DataDir = DefaultDataDir
	cfg.Backend = DefaultBackend
	cfg.AutosaveDelayMS = DefaultAutosaveDelayMS
	cfg.GranularityMinutes = DefaultGranularityMinutes
	cfg.LeadInMinutes = DefaultLeadInMinutes
	cfg.TrailOutMinutes = DefaultTrailOutMinutes
	cfg.ColumnWidth = DefaultColumnWidth
	cfg.Theme = DefaultTheme
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// Default returns a config holding only the built-in defaults, with paths
// expanded.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.DataDir = expandPath(cfg.DataDir)
	return cfg
}
