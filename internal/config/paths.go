package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	SocketName       = "memoria.sock"
	EventsSocketName = "memoria-events.sock"
	appDir           = "memoria"
	configFile       = "config.toml"
)

// DefaultPath is ~/.config/memoria/config.toml, honouring XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appDir, configFile), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDir, configFile), nil
}

// DefaultDataDir is ~/.local/share/memoria, honouring XDG_DATA_HOME.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appDir), nil
}

// RuntimeDir is $XDG_RUNTIME_DIR, or /run/user/<uid> when unset.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return fmt.Sprintf("/run/user/%d", os.Geteuid())
}

// RuntimePath joins name onto RuntimeDir.
func RuntimePath(name string) string {
	return filepath.Join(RuntimeDir(), name)
}
