// Package config loads the soundscape configuration file
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/soundscape/audio"
	"github.com/lixenwraith/soundscape/constant"
	"github.com/lixenwraith/soundscape/metrics"
	"github.com/lixenwraith/soundscape/theme"
)

// Config represents the complete application configuration
type Config struct {
	Audio   audio.AudioConfig            `yaml:"audio"`
	Metrics metrics.Config               `yaml:"metrics"`
	Logging LoggingConfig                `yaml:"logging"`
	Prefs   PrefsConfig                  `yaml:"prefs"`
	Themes  ThemesConfig                 `yaml:"themes"`
	Chains  map[string]audio.ChainRecipe `yaml:"chains"` // Effect overrides by theme ID
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"` // discard, stdout, stderr or a file path
}

// PrefsConfig locates the preferences file
type PrefsConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// ThemesConfig locates an external theme catalog; empty uses the built-in set
type ThemesConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Audio:   *audio.DefaultAudioConfig(),
		Metrics: metrics.DefaultConfig(),
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "discard"},
		Prefs:   PrefsConfig{Path: constant.DefaultPrefsPath},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	}

	cfg.Audio.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// resolvePaths makes relative file references relative to the config file
func (c *Config) resolvePaths(dir string) {
	if c.Themes.Path != "" && !filepath.IsAbs(c.Themes.Path) {
		c.Themes.Path = filepath.Join(dir, c.Themes.Path)
	}
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if !c.Prefs.Disabled && c.Prefs.Path == "" {
		return fmt.Errorf("prefs config: path cannot be empty unless disabled")
	}

	for id, r := range c.Chains {
		if err := r.Validate(c.Audio.SampleRate); err != nil {
			return fmt.Errorf("chain %q: %w", id, err)
		}
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}

// Catalog loads the configured theme catalog
func (c *Config) Catalog() (*theme.Catalog, error) {
	if c.Themes.Path == "" {
		return theme.Default(), nil
	}
	cat, err := theme.Load(c.Themes.Path)
	if err != nil {
		return nil, err
	}
	if err := cat.Validate(c.Audio.SampleRate); err != nil {
		return nil, err
	}
	return cat, nil
}

// ChainPolicy layers catalog effects and config overrides on the built-in policy
func (c *Config) ChainPolicy(cat *theme.Catalog) audio.ChainPolicy {
	p := audio.DefaultChainPolicy()
	if cat != nil {
		p = p.With(cat.Recipes())
	}
	return p.With(c.Chains)
}

// NewLogger builds a logger from the logging section
// The returned closer releases a log file and is never nil
func (l *LoggingConfig) NewLogger() (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var (
		output io.Writer
		closer io.Closer = nopCloser{}
	)
	switch l.Output {
	case "", "discard":
		output = io.Discard
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(l.Output), 0o755); err != nil {
			return nil, closer, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(l.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("open log file %s: %w", l.Output, err)
		}
		output, closer = f, f
	}

	var handler slog.Handler
	if l.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
