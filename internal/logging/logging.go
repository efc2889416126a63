// Package logging configures leveled console logging and per-session log
// files.
package logging

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options holds logger configuration as read from config files and flags.
type Options struct {
	Level      string
	Format     string
	Timestamps bool
	Caller     bool
	Prefix     string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Format: "text",
		Prefix: "timeblock",
	}
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(opts.Level),
		Formatter:       ParseFormatter(opts.Format),
		ReportTimestamp: opts.Timestamps,
		ReportCaller:    opts.Caller,
		Prefix:          opts.Prefix,
		TimeFormat:      time.DateTime,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ParseLevel maps a level name to a log.Level. Unknown names yield info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// ParseFormatter maps "json" and "logfmt" to their formatters; anything
// else is text.
func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// SessionLog is a log file for one process run, kept under a directory
// derived from the data directory it operated on.
type SessionLog struct {
	Dir  string
	ID   string
	Path string
	file *os.File
}

// OpenSessionLog creates <baseDir>/<slug>/<session>.log.
func OpenSessionLog(baseDir, dataDir string) (*SessionLog, error) {
	dir, err := SessionDir(baseDir, dataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	id := sessionID()
	path := filepath.Join(dir, id+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return &SessionLog{Dir: dir, ID: id, Path: path, file: file}, nil
}

// Writer returns the file writer.
func (s *SessionLog) Writer() io.Writer {
	return s.file
}

// Close closes the log file.
func (s *SessionLog) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// SessionDir returns the directory holding session logs for dataDir.
func SessionDir(baseDir, dataDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("log base dir is empty")
	}
	if abs, err := filepath.Abs(dataDir); err == nil {
		dataDir = abs
	}
	return filepath.Join(filepath.Clean(baseDir), dirSlug(dataDir)), nil
}

// dirSlug names a directory after its base name plus a short path hash so
// two data dirs with the same name do not share logs.
func dirSlug(path string) string {
	sum := sha1.Sum([]byte(path))
	return fmt.Sprintf("%s-%s", slugify(filepath.Base(path)), hex.EncodeToString(sum[:])[:8])
}

func slugify(input string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, c := range input {
		valid := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-'
		if !valid {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteRune(c)
		lastUnderscore = false
	}
	slug := strings.Trim(b.String(), "_.")
	if slug == "" {
		return "data"
	}
	return slug
}

func sessionID() string {
	return fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102-150405"), os.Getpid())
}

// FindLatest returns the most recently modified session log in dir, or ""
// when there is none.
func FindLatest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read log dir: %w", err)
	}

	var latest string
	var latestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latest = filepath.Join(dir, entry.Name())
		}
	}
	return latest, nil
}

// Tail copies the last n lines of path to w. n <= 0 copies everything.
func Tail(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		_, err = io.Copy(w, file)
		return err
	}

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	for _, line := range ring {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
