// Package helper resolves filesystem paths for the process: where the
// configuration file lives and where the PID file goes.
package helper

import (
	"os"
	"path/filepath"
)

// Fallback locations when a relative name resolves nowhere near the
// working directory.
const (
	etcDir         = "/etc/caseline"
	defaultPIDPath = "/var/run/caseline.pid"
)

// GetCfgPath resolves a configuration file name to a concrete path.
// Absolute paths win; a relative name is looked up in the working
// directory, then under ./configs, then falls back to /etc/caseline.
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("config filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	if found := firstExisting(filename, filepath.Join("configs", filename)); found != "" {
		return found
	}
	return filepath.Join(etcDir, filename)
}

// GetPIDPath resolves where the PID file should be written. Absolute
// paths win; a relative name lands in the working directory when its
// parent directory exists, otherwise the fixed /var/run location is used.
func GetPIDPath(filename string) string {
	if filename == "" {
		return defaultPIDPath
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return defaultPIDPath
	}
	if _, err := os.Stat(filepath.Dir(abs)); err == nil {
		return abs
	}
	return defaultPIDPath
}

// firstExisting returns the absolute form of the first candidate that
// exists relative to the working directory.
func firstExisting(candidates ...string) string {
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
	}
	return ""
}
