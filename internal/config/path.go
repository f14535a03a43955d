// Package config provides layered runtime configuration for cardwise.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appDir = "cardwise"

// ExpandPath resolves a leading ~ to the home directory and then expands
// $VAR references. Paths that cannot be expanded are returned as given.
func ExpandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~"); ok && (rest == "" || rest[0] == '/') {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + rest
		}
	}
	return os.ExpandEnv(path)
}

// xdgDir returns $env when it is an absolute path and ~/fallback otherwise.
func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return filepath.Join(dir, appDir)
	}
	return filepath.Join(ExpandPath("~"), fallback, appDir)
}

// DefaultDatabasePath returns the database location used when none is
// configured: cardwise.db under $XDG_DATA_HOME/cardwise.
func DefaultDatabasePath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local/share"), "cardwise.db")
}

// DefaultConfigDir returns the directory searched for config.yaml,
// $XDG_CONFIG_HOME/cardwise.
func DefaultConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}
