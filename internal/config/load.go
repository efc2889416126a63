package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nibzard/timeblock/internal/theme"
	"github.com/nibzard/timeblock/internal/timeline"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.timeblock/timeblock.toml or OS-specific config dir)
// 3. Project config file (timeblock.toml or .timeblock.toml in current directory)
// 4. Environment variables
// 5. CLI flags
//
// Flags are parsed from args with fs; the command line left after the flags
// is available from fs.Args().
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := LoadWithSources(fs, args)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	cfg := &Config{}
	var files []string

	// 1. Set defaults (all fields start with default source)
	setDefaults(cfg)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}

	// 2. Try to load from user config file
	if userConfigFile := findUserConfigFile(); userConfigFile != "" {
		if err := loadConfigFile(cfg, userConfigFile, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
		files = append(files, userConfigFile)
	}

	// 3. Try to load from project config file (overrides user config)
	if projectConfigFile := findProjectConfigFile(); projectConfigFile != "" {
		if err := loadConfigFile(cfg, projectConfigFile, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
		files = append(files, projectConfigFile)
	}

	// 4. Override from environment
	if err := loadFromEnv(cfg, sources); err != nil {
		return nil, err
	}

	// 5. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return &ConfigWithSources{Config: cfg, Sources: sources, Files: files}, nil
}

// GetConfigFile returns the config file with the highest precedence that was
// read, or "" when none was.
func (cws *ConfigWithSources) GetConfigFile() string {
	if len(cws.Files) == 0 {
		return ""
	}
	return cws.Files[len(cws.Files)-1]
}

// loadConfigFile decodes a TOML file over cfg and marks every key it set.
func loadConfigFile(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if sources == nil {
		return nil
	}
	for _, key := range md.Keys() {
		name := key.String()
		if _, ok := sources[name]; ok {
			sources[name] = source
		}
	}
	return nil
}

// findProjectConfigFile looks for a config file in the current directory.
func findProjectConfigFile() string {
	for _, name := range []string{"timeblock.toml", ".timeblock.toml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// findUserConfigFile looks for a user-level config file.
// Checks ~/.timeblock/timeblock.toml first, then falls back to OS-specific
// config directories.
func findUserConfigFile() string {
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".timeblock", "timeblock.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	if cfgDir := osUserConfigDir(); cfgDir != "" {
		path := filepath.Join(cfgDir, "timeblock", "timeblock.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// osUserConfigDir returns the OS-specific user config directory.
// Returns empty string if the directory cannot be determined.
func osUserConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return os.Getenv("APPDATA")
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	case "linux", "openbsd", "freebsd", "netbsd":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config")
		}
	}
	return ""
}

// finalizeConfig normalizes values, expands paths and validates the result.
func finalizeConfig(cfg *Config) error {
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Theme = strings.ToLower(strings.TrimSpace(cfg.Theme))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return cfg.Validate()
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Backend))
	}
	if c.AutosaveDelayMS < 0 {
		errs = append(errs, fmt.Errorf("autosave_delay_ms must not be negative, got %d", c.AutosaveDelayMS))
	}
	if _, err := timeline.ModeForGranularity(c.GranularityMinutes); err != nil {
		errs = append(errs, fmt.Errorf("granularity_minutes: %w", err))
	}
	if c.LeadInMinutes < 0 || c.TrailOutMinutes < 0 {
		errs = append(errs, fmt.Errorf("lead_in_minutes and trail_out_minutes must not be negative"))
	}
	if c.ColumnWidth < 1 {
		errs = append(errs, fmt.Errorf("column_width must be at least 1, got %d", c.ColumnWidth))
	}
	if _, ok := theme.Preset(c.Theme); !ok {
		errs = append(errs, fmt.Errorf("theme must be one of %s, got %q", strings.Join(theme.PresetNames(), ", "), c.Theme))
	}
	switch c.LogFormat {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text, json or logfmt, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
