package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// expandPath expands $VAR references and a leading ~ in a configured
// directory. Values that cannot be expanded are returned as written.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)

	rest, ok := trimHome(p)
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if rest == "" {
		return home
	}
	return filepath.Join(home, rest)
}

// trimHome strips "~" or "~/" (also "~\" on Windows) and reports whether p
// was home-relative.
func trimHome(p string) (string, bool) {
	if p == "~" {
		return "", true
	}
	seps := "/"
	if runtime.GOOS == "windows" {
		seps = `/\`
	}
	if len(p) >= 2 && p[0] == '~' && strings.ContainsRune(seps, rune(p[1])) {
		return p[2:], true
	}
	return "", false
}
