// Package config holds the settings of one action run. Values come from the
// defaults, an optional YAML file and ACTIONKIT_* environment variables, in
// that order.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	ModeEffect = "effect"
	ModeDirect = "direct"

	FormatJSON    = "json"
	FormatConsole = "console"

	EnvPrefix = "ACTIONKIT_"
)

type Config struct {
	// Mode selects the pipeline (effect) or the imperative (direct) variant.
	Mode      string        `yaml:"mode"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Timeout   time.Duration `yaml:"timeout"`
	// Pushgateway is the URL metrics are pushed to after the run. Empty
	// disables pushing.
	Pushgateway string `yaml:"pushgateway"`
	Job         string `yaml:"job"`
}

func Default() *Config {
	return &Config{
		Mode:      ModeEffect,
		LogLevel:  "info",
		LogFormat: FormatJSON,
		Timeout:   5 * time.Minute,
		Job:       "actionkit",
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error; an empty path skips the file. A nil lookup
// uses os.LookupEnv.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrapf(err, "read config %s", path)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	strs := map[string]*string{
		"MODE":        &c.Mode,
		"LOG_LEVEL":   &c.LogLevel,
		"LOG_FORMAT":  &c.LogFormat,
		"PUSHGATEWAY": &c.Pushgateway,
		"JOB":         &c.Job,
	}
	for key, field := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*field = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "parse %sTIMEOUT", EnvPrefix)
		}
		c.Timeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeEffect, ModeDirect:
	default:
		return errors.Errorf("unknown mode %q, want %s or %s", c.Mode, ModeEffect, ModeDirect)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	switch c.LogFormat {
	case FormatJSON, FormatConsole:
	default:
		return errors.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Timeout < 0 {
		return errors.Errorf("negative timeout %s", c.Timeout)
	}
	if c.Pushgateway != "" && c.Job == "" {
		return errors.New("pushgateway requires a job name")
	}
	return nil
}

// Logger builds the process logger. It writes to w, never to the stream the
// runner reads commands from.
func (c *Config) Logger(w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	var encoder zapcore.Encoder
	if c.LogFormat == FormatConsole {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
