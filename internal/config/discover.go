package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPath returns the XDG-compliant default config path.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "./config.yaml"
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "searchd", "config.yaml")
}

// Discover finds the config file using the standard search order:
//  1. SEARCHD_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. $XDG_CONFIG_HOME/searchd/config.yaml
//  4. /etc/searchd/config.yaml
//
// Unlike Load, Discover never scaffolds a missing file; callers pass the
// result (or their own path) into Load to get one created.
func Discover() (string, error) {
	if envPath := os.Getenv("SEARCHD_CONFIG"); envPath != "" {
		return envPath, nil
	}

	paths := []string{
		"./config.yaml",
		DefaultPath(),
		"/etc/searchd/config.yaml",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no existing config found, checked: %s (pass --config to create one)", strings.Join(paths, ", "))
}
