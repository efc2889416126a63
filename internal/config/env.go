package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TIMEBLOCK_"

// loadFromEnv overrides config from TIMEBLOCK_* environment variables. A
// malformed numeric value is an error rather than silently ignored.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) error {
	mark := func(field string) {
		if sources != nil {
			sources[field] = SourceEnv
		}
	}
	str := func(field string, target *string) {
		if v := os.Getenv(envName(field)); v != "" {
			*target = v
			mark(field)
		}
	}
	var errs []error
	num := func(field string, target *int) {
		v := os.Getenv(envName(field))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", envName(field), v))
			return
		}
		*target = n
		mark(field)
	}
	flag := func(field string, target *bool) {
		if v, ok := os.LookupEnv(envName(field)); ok && v != "" {
			*target = boolFromString(v)
			mark(field)
		}
	}

	str("data_dir", &cfg.DataDir)
	str("backend", &cfg.Backend)
	num("autosave_delay_ms", &cfg.AutosaveDelayMS)
	num("granularity_minutes", &cfg.GranularityMinutes)
	num("lead_in_minutes", &cfg.LeadInMinutes)
	num("trail_out_minutes", &cfg.TrailOutMinutes)
	num("column_width", &cfg.ColumnWidth)
	str("theme", &cfg.Theme)
	str("log_level", &cfg.LogLevel)
	str("log_format", &cfg.LogFormat)
	flag("log_timestamps", &cfg.LogTimestamps)
	flag("log_caller", &cfg.LogCaller)
	str("log_dir", &cfg.LogDir)

	return errors.Join(errs...)
}

// envName maps a config key to its environment variable.
func envName(field string) string {
	return EnvPrefix + strings.ToUpper(field)
}

// boolFromString parses a boolean from a string.
func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
