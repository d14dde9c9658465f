// Package paths resolves the workspace, configuration and data directory
// locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the platform configuration directory.
const AppName = "notesync"

// DefaultDataDirName is the workspace-relative default data directory.
const DefaultDataDirName = ".notesync"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "NOTESYNC_CONFIG_DIR"
	EnvDataDir   = "NOTESYNC_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/notesync (fallback ~/.config/notesync)
// macOS:   ~/Library/Application Support/notesync
// Windows: %APPDATA%/notesync
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > NOTESYNC_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveWorkspace returns the absolute workspace directory: flag when set,
// otherwise the current directory.
func ResolveWorkspace(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	return os.Getwd()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configValue > NOTESYNC_DATA_DIR env > <workspace>/.notesync.
func ResolveDataDir(flag, configValue, workspace string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return filepath.Join(workspace, DefaultDataDirName), nil
}
