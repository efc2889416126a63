// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.timeblock/timeblock.toml or OS-specific config directory)
// 3. Project config file (timeblock.toml or .timeblock.toml in the working directory)
// 4. Environment variables (TIMEBLOCK_*)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - ~/.timeblock/timeblock.toml (preferred)
// - Windows: %APPDATA%\timeblock\timeblock.toml
// - macOS: ~/Library/Application Support/timeblock/timeblock.toml
// - Linux/BSD: $XDG_CONFIG_HOME/timeblock/timeblock.toml or ~/.config/timeblock/timeblock.toml
package config
