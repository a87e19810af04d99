// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg resolves the credauth paths under the XDG Base Directory
// layout.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "credauth"

// ConfigDir returns $XDG_CONFIG_HOME/credauth, falling back to
// ~/.config/credauth.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultConfigFile returns ConfigFile if it exists, otherwise "".
func DefaultConfigFile() string {
	path := ConfigFile()
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}
