// Package paths resolves the configuration, data and application
// directories and checks that the running account may write to them.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sys/unix"
)

// appName is the directory component used under platform config/data roots.
const appName = "cvalchemist"

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".cvalchemist"
	DefaultDataDirName   = ".cvalchemist-data"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CV_ALCHEMIST_CONFIG_DIR"
	EnvDataDir   = "CV_ALCHEMIST_DATA_DIR"
	EnvAppDir    = "CV_ALCHEMIST_APP_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/cvalchemist (fallback ~/.config/cvalchemist)
// macOS:   ~/Library/Application Support/cvalchemist
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > CV_ALCHEMIST_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the result store directory following the precedence
// chain: flag > config.yaml value > CV_ALCHEMIST_DATA_DIR env > $(CWD)/.cvalchemist-data.
//
// The CWD default keeps data inside the application's working directory,
// which the image hands to the service account.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	return resolve(flag, configYAMLValue, EnvDataDir, DefaultDataDirName)
}

// ResolveAppDir returns the directory holding index.html and other static
// assets: flag > config.yaml value > CV_ALCHEMIST_APP_DIR env > $(CWD).
func ResolveAppDir(flag, configYAMLValue string) (string, error) {
	return resolve(flag, configYAMLValue, EnvAppDir, "")
}

func resolve(flag, configValue, env, cwdRelative string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if v := os.Getenv(env); v != "" {
		return filepath.Abs(v)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, cwdRelative), nil
}

// Writable reports whether the current account may create files in dir.
// The check uses the process' real uid and gid, as access(2) does.
func Writable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", dir)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return &os.PathError{Op: "access", Path: dir, Err: err}
	}
	return nil
}
