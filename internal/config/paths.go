// Package config loads contextkeeper settings from file, environment and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigDir returns the default configuration directory (~/.contextkeeper).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".contextkeeper"), nil
}

// DefaultConfigPath returns the default configuration file path (~/.contextkeeper/config.yaml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultDataPath returns the default database file path (~/.contextkeeper/history.db).
func DefaultDataPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ExpandPath expands ~ prefix in path to user home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	if path == "~" {
		return os.UserHomeDir()
	}

	return path, nil
}

// DatabasePath returns the sqlite history path: storage.path expanded, or
// DefaultDataPath when unset.
func (s StorageConfig) DatabasePath() (string, error) {
	if s.Path == "" {
		return DefaultDataPath()
	}
	return ExpandPath(s.Path)
}
