package config

import (
	"path/filepath"
	"time"

	"github.com/nibzard/timeblock/internal/theme"
	"github.com/nibzard/timeblock/internal/timeline"
)

// ViewMode returns the timeline mode for the configured granularity and
// column width.
func (c *Config) ViewMode() (timeline.ViewMode, error) {
	mode, err := timeline.ModeForGranularity(c.GranularityMinutes)
	if err != nil {
		return timeline.ViewMode{}, err
	}
	return mode.WithColumnWidth(c.ColumnWidth), nil
}

// Padding returns the window margins.
func (c *Config) Padding() timeline.Padding {
	return timeline.Padding{
		LeadIn:   time.Duration(c.LeadInMinutes) * time.Minute,
		TrailOut: time.Duration(c.TrailOutMinutes) * time.Minute,
	}
}

// AutosaveDelay returns the autosave quiet period. Zero selects the
// persistence default.
func (c *Config) AutosaveDelay() time.Duration {
	return time.Duration(c.AutosaveDelayMS) * time.Millisecond
}

// DefaultThemeColors returns the configured preset, falling back to the
// built-in default.
func (c *Config) DefaultThemeColors() theme.Theme {
	if t, ok := theme.Preset(c.Theme); ok {
		return t
	}
	return theme.Default()
}

// SQLitePath is the database file used by the sqlite backend.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "timeblock.db")
}
