package config

import (
	"flag"
	"io"
)

// Flags are the command-line overrides for memoriad.
//
//	-config string     config file (default ~/.config/memoria/config.toml)
//	-data-dir string   database and image directory
//	-socket string     command socket path
//	-log-level string  debug, info, warn or error
type Flags struct {
	ConfigPath string
	DataDir    string
	SocketPath string
	LogLevel   string
}

// ParseFlags parses args (without the program name). Usage and errors are
// written to output.
func ParseFlags(name string, args []string, output io.Writer) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.ConfigPath, "config", "", "path to config.toml")
	fs.StringVar(&f.DataDir, "data-dir", "", "data directory for the database and images")
	fs.StringVar(&f.SocketPath, "socket", "", "command socket path")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Apply overlays non-empty flag values onto cfg.
func (f Flags) Apply(cfg *Config) {
	if f.DataDir != "" {
		cfg.Daemon.DataDir = f.DataDir
	}
	if f.SocketPath != "" {
		cfg.Daemon.SocketPath = f.SocketPath
	}
	if f.LogLevel != "" {
		cfg.Daemon.LogLevel = f.LogLevel
	}
}

// LoadWithFlags resolves the config path, loads it, overlays f and fills
// remaining paths from the environment.
func LoadWithFlags(f Flags) (*Config, string, error) {
	path := f.ConfigPath
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	f.Apply(cfg)
	if err := cfg.Resolve(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
