// Package config loads the command line settings from a YAML file and the environment.
package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-imgpipe/pkg/pipeline"
	"github.com/askiada/go-imgpipe/pkg/transport"
)

const (
	EnvBaseURL  = "IMGPIPE_BASE_URL"
	EnvLive     = "IMGPIPE_LIVE"
	EnvLogLevel = "IMGPIPE_LOG_LEVEL"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as a Go duration string, e.g. "1.5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string

	err := node.Decode(&raw)
	if err != nil {
		return errors.Wrap(err, "unable to decode duration")
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "line %d: %s", node.Line, err)
	}

	*d = Duration(parsed)

	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type Status struct {
	DoneDelay     Duration `yaml:"done_delay"`
	ErrorDelay    Duration `yaml:"error_delay"`
	DisabledDelay Duration `yaml:"disabled_delay"`
}

type Limits struct {
	MaxFileSize  int64 `yaml:"max_file_size"`
	MaxDimension int   `yaml:"max_dimension"`
}

type Server struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
	Retries uint64   `yaml:"retries"`
}

type Config struct {
	Server          Server `yaml:"server"`
	LiveProcessing  bool   `yaml:"live_processing"`
	SaveConcurrency int    `yaml:"save_concurrency"`
	LogLevel        string `yaml:"log_level"`
	Status          Status `yaml:"status"`
	Limits          Limits `yaml:"limits"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{
			BaseURL: "http://localhost:5000",
			Timeout: Duration(transport.DefaultTimeout),
			Retries: transport.DefaultRetries,
		},
		LiveProcessing:  true,
		SaveConcurrency: pipeline.DefaultSaveConcurrency,
		LogLevel:        "info",
		Status: Status{
			DoneDelay:     Duration(pipeline.DefaultDoneDelay),
			ErrorDelay:    Duration(pipeline.DefaultErrorDelay),
			DisabledDelay: Duration(pipeline.DefaultDisabledDelay),
		},
		Limits: Limits{
			MaxFileSize:  pipeline.DefaultMaxFileSize,
			MaxDimension: pipeline.DefaultMaxDimension,
		},
	}
}

// Load reads the file at path on top of the defaults, applies the process environment and validates
// the result. An empty path only uses the defaults and the environment.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with the environment read through lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "unable to open configuration")
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)

		err = dec.Decode(cfg)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(ErrInvalidConfig, "%s: %s", path, err)
		}
	}

	err := cfg.ApplyEnv(lookup)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides the settings with the IMGPIPE_ variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok {
		c.Server.BaseURL = v
	}

	if v, ok := lookup(EnvLive); ok {
		live, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q", EnvLive, v)
		}

		c.LiveProcessing = live
	}

	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.Wrap(ErrInvalidConfig, "server.base_url must be set")
	}

	if c.Server.Timeout <= 0 {
		return errors.Wrap(ErrInvalidConfig, "server.timeout must be positive")
	}

	if c.Limits.MaxFileSize <= 0 || c.Limits.MaxDimension <= 0 {
		return errors.Wrap(ErrInvalidConfig, "limits must be positive")
	}

	if c.Status.DoneDelay < 0 || c.Status.ErrorDelay < 0 || c.Status.DisabledDelay < 0 {
		return errors.Wrap(ErrInvalidConfig, "status delays cannot be negative")
	}

	_, err := c.Level()

	return err
}

// Level converts LogLevel to a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "log_level %q", c.LogLevel)
	}

	return level, nil
}

func (c *Config) PipelineOptions() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithLiveProcessing(c.LiveProcessing),
		pipeline.WithStatusDelays(
			time.Duration(c.Status.DoneDelay),
			time.Duration(c.Status.ErrorDelay),
			time.Duration(c.Status.DisabledDelay),
		),
		pipeline.WithLimits(c.Limits.MaxFileSize, c.Limits.MaxDimension),
		pipeline.WithSaveConcurrency(c.SaveConcurrency),
	}
}

func (c *Config) TransportOptions() []transport.Option {
	return []transport.Option{
		transport.WithTimeout(time.Duration(c.Server.Timeout)),
		transport.WithRetries(c.Server.Retries),
	}
}
