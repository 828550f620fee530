package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/publisher"
)

// Config is the top-level configuration loaded from file and environment.
type Config struct {
	Publisher publisher.Config `yaml:"publisher" json:"publisher"`
	Logging   Logging          `yaml:"logging" json:"logging"`
}

// Logging selects the slog handler.
type Logging struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level" json:"level"`
	// Format is text or json.
	Format string `yaml:"format" json:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Publisher: publisher.DefaultConfig(),
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML or JSON file. If path is empty, it
// returns defaults. Either way the environment is applied last and the result
// is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml", ".json":
		default:
			return Config{}, fmt.Errorf("%w: unsupported config file extension %q", errs.ErrInvalidConfig, ext)
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := Decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := FromEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Decode overlays a YAML document onto cfg. JSON documents are valid YAML and
// decode the same way. Unknown keys are an error.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err)
	}

	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Publisher.Validate(); err != nil {
		return err
	}

	return c.Logging.Validate()
}

// Validate checks the level and format names.
func (l Logging) Validate() error {
	if _, err := l.level(); err != nil {
		return err
	}

	switch strings.ToLower(l.Format) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("%w: log format %q", errs.ErrInvalidConfig, l.Format)
	}
}

func (l Logging) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("%w: log level %q", errs.ErrInvalidConfig, l.Level)
	}

	return level, nil
}

// NewLogger builds a logger writing to w.
func (l Logging) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: log format %q", errs.ErrInvalidConfig, l.Format)
	}
}
