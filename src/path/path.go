// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package path resolves OS-specific directories for the worker host.
package path

import (
	"os"
	"path/filepath"
	"runtime"
)

const projectName = "latsar"

// IsRoot returns true if running as root/Administrator
func IsRoot() bool {
	return os.Geteuid() == 0
}

// IsDocker returns true if running inside a Docker container
func IsDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// ConfigDir returns the configuration directory
func ConfigDir() string {
	if IsDocker() {
		return filepath.Join("/config", projectName)
	}

	switch runtime.GOOS {
	case "windows":
		if IsRoot() {
			return filepath.Join(os.Getenv("ProgramData"), projectName)
		}
		return filepath.Join(os.Getenv("APPDATA"), projectName)
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library/Application Support", projectName)
	default:
		if IsRoot() {
			return filepath.Join("/etc", projectName)
		}
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, projectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", projectName)
	}
}

// DataDir returns the data directory
func DataDir() string {
	if IsDocker() {
		return filepath.Join("/data", projectName)
	}

	switch runtime.GOOS {
	case "windows":
		if IsRoot() {
			return filepath.Join(os.Getenv("ProgramData"), projectName, "data")
		}
		return filepath.Join(os.Getenv("LOCALAPPDATA"), projectName)
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library/Application Support", projectName, "data")
	default:
		if IsRoot() {
			return filepath.Join("/var/lib", projectName)
		}
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, projectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local/share", projectName)
	}
}

// ConfigFile returns the server config file path
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "server.yml")
}

// ClientConfigFile returns the CLI config file path
func ClientConfigFile() string {
	return filepath.Join(ConfigDir(), "cli.yml")
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
