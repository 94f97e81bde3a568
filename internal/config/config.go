// Package config loads the daemon's TOML configuration, applying defaults
// for anything the file leaves out, and resolves the on-disk locations the
// daemon uses.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
	"github.com/kimhsiao/memoria/internal/logging"
)

// Config is the full daemon configuration.
//
// Fields:
//   - Retention: how old items are expired.
//   - UI, Grid: presentation settings served to the overlay client via get_settings.
//   - Behavior: capture behaviour (dedup).
//   - Daemon: process-level settings; empty paths are resolved at startup.
//   - Events: the optional websocket event stream.
type Config struct {
	Retention Retention `toml:"retention" json:"retention"`
	UI        UI        `toml:"ui" json:"ui"`
	Grid      Grid      `toml:"grid" json:"grid"`
	Behavior  Behavior  `toml:"behavior" json:"behavior"`
	Daemon    Daemon    `toml:"daemon" json:"daemon"`
	Events    Events    `toml:"events" json:"events"`
}

type Retention struct {
	Days                int  `toml:"days" json:"days"`
	DeleteUnstarredOnly bool `toml:"delete_unstarred_only" json:"delete_unstarred_only"`
}

type UI struct {
	Width   int     `toml:"width" json:"width"`
	Height  int     `toml:"height" json:"height"`
	Anchor  string  `toml:"anchor" json:"anchor"`
	Opacity float64 `toml:"opacity" json:"opacity"`
	Blur    float64 `toml:"blur" json:"blur"`
}

type Grid struct {
	ThumbSize int `toml:"thumb_size" json:"thumb_size"`
	Columns   int `toml:"columns" json:"columns"`
}

type Behavior struct {
	Dedupe bool `toml:"dedupe" json:"dedupe"`
}

type Daemon struct {
	PollIntervalMS int    `toml:"poll_interval_ms" json:"poll_interval_ms"`
	ToolTimeoutMS  int    `toml:"tool_timeout_ms" json:"tool_timeout_ms"`
	LogLevel       string `toml:"log_level" json:"log_level"`
	DataDir        string `toml:"data_dir,omitempty" json:"data_dir,omitempty"`
	SocketPath     string `toml:"socket_path,omitempty" json:"socket_path,omitempty"`
}

type Events struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	SocketPath string `toml:"socket_path,omitempty" json:"socket_path,omitempty"`
}

// Settings is the read-only snapshot returned by get_settings.
type Settings struct {
	UI       UI       `json:"ui"`
	Grid     Grid     `json:"grid"`
	Behavior Behavior `json:"behavior"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Retention: Retention{Days: 30, DeleteUnstarredOnly: true},
		UI: UI{
			Width:   480,
			Height:  640,
			Anchor:  "top-right",
			Opacity: 0.92,
			Blur:    12,
		},
		Grid:     Grid{ThumbSize: 104, Columns: 3},
		Behavior: Behavior{Dedupe: true},
		Daemon: Daemon{
			PollIntervalMS: 300,
			ToolTimeoutMS:  2000,
			LogLevel:       "info",
		},
		Events: Events{Enabled: true},
	}
}

// Settings returns the presentation snapshot.
func (c *Config) Settings() Settings {
	return Settings{UI: c.UI, Grid: c.Grid, Behavior: c.Behavior}
}

// PollInterval is the clipboard sampling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Daemon.PollIntervalMS) * time.Millisecond
}

// ToolTimeout bounds each external clipboard tool invocation.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Daemon.ToolTimeoutMS) * time.Millisecond
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Retention.Days < 0:
		return apperrors.Newf(apperrors.ErrInvalidArgument, "retention.days must not be negative, got %d", c.Retention.Days)
	case c.Daemon.PollIntervalMS <= 0:
		return apperrors.Newf(apperrors.ErrInvalidArgument, "daemon.poll_interval_ms must be positive, got %d", c.Daemon.PollIntervalMS)
	case c.Daemon.ToolTimeoutMS <= 0:
		return apperrors.Newf(apperrors.ErrInvalidArgument, "daemon.tool_timeout_ms must be positive, got %d", c.Daemon.ToolTimeoutMS)
	case c.Grid.ThumbSize <= 0 || c.Grid.Columns <= 0:
		return apperrors.New(apperrors.ErrInvalidArgument, "grid.thumb_size and grid.columns must be positive")
	}
	return nil
}

// Parse decodes TOML over the defaults. Empty input yields the defaults and
// fields absent from data keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("invalid config at line %d column %d: %w", row, col, err)
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads path. A missing file is created with the defaults; any other
// read or parse failure is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if werr := Write(path, cfg); werr != nil {
			// Running without a config file is still fine.
			logging.Warn("failed to write default config", map[string]interface{}{"path": path, "error": werr.Error()})
		} else {
			logging.Info("wrote default config", map[string]interface{}{"path": path})
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Write encodes cfg to path, creating parent directories.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Resolve fills empty path settings from the environment.
func (c *Config) Resolve() error {
	if strings.TrimSpace(c.Daemon.DataDir) == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		c.Daemon.DataDir = dir
	}
	if c.Daemon.SocketPath == "" {
		c.Daemon.SocketPath = RuntimePath(SocketName)
	}
	if c.Events.SocketPath == "" {
		c.Events.SocketPath = RuntimePath(EventsSocketName)
	}
	return nil
}
