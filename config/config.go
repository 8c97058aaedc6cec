// Package config loads runtime configuration from a YAML file, with
// sensible defaults when no file is given.
package config

import (
	"fmt"
	"log/slog"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the runtime configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`
	// AutoContinue coalesces consecutive dialogue text lines instead of
	// pausing on every line.
	AutoContinue bool `koanf:"auto_continue"`
	// Commands extends the accepted dialogue command set beyond the
	// built-ins. Commands listed here but not handled by the engine pass
	// through to the front end.
	Commands []string `koanf:"commands"`
	// SaveDir is where /save writes save files.
	SaveDir string `koanf:"save_dir"`
	// DialogueDir holds the *.dialogue.json assets.
	DialogueDir string `koanf:"dialogue_dir"`
	// ScriptDir holds the behavior scripts.
	ScriptDir string `koanf:"script_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		SaveDir:     "saves",
		DialogueDir: "dialogues",
		ScriptDir:   "scripts",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Level maps the configured log level to slog. Unknown values fall back
// to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
