// Package config loads walkthrough settings from flags, SUPERVISED_*
// environment variables and an optional supervised.yaml, in that order of
// precedence.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/supervised-learning/datasets"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// EnvPrefix is prepended to every environment variable, e.g.
// SUPERVISED_PLOT_DIR.
const EnvPrefix = "SUPERVISED"

// Config holds the settings shared by every walkthrough.
type Config struct {
	DataHome       string
	DatasetBaseURL string
	PlotDir        string
	LogLevel       string
	LogConsole     bool
	HTTPTimeout    time.Duration
	HTTPMaxTries   uint
	NoPlots        bool
	ConfigFile     string

	// Args are the positional arguments left after the flags.
	Args []string
}

// NewFlagSet declares the shared flags.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("data-home", datasets.DefaultDataHome(), "directory caching the toy dataset files")
	fs.String("dataset-base-url", datasets.DefaultBaseURL, "URL prefix the dataset files are downloaded from")
	fs.String("plot-dir", "plots", "directory PNG plots are written to")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-console", true, "human readable logs instead of JSON lines")
	fs.Duration("http-timeout", 60*time.Second, "timeout of one remote download, retries included")
	fs.Uint("http-max-tries", 5, "maximum download attempts")
	fs.Bool("no-plots", false, "skip drawing plots")
	fs.String("config", "", "path of a YAML config file (default ./supervised.yaml if present)")
	return fs
}

// Load parses args into a Config.
func Load(name string, args []string) (*Config, error) {
	fs := NewFlagSet(name)
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}
	return FromFlags(fs)
}

// FromFlags resolves a Config from a parsed flag set, the environment and
// the config file.
func FromFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	} else {
		v.SetConfigName("supervised")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read supervised.yaml")
			}
		}
	}

	cfg := &Config{
		DataHome:       v.GetString("data-home"),
		DatasetBaseURL: v.GetString("dataset-base-url"),
		PlotDir:        v.GetString("plot-dir"),
		LogLevel:       v.GetString("log-level"),
		LogConsole:     v.GetBool("log-console"),
		HTTPTimeout:    v.GetDuration("http-timeout"),
		HTTPMaxTries:   v.GetUint("http-max-tries"),
		NoPlots:        v.GetBool("no-plots"),
		ConfigFile:     v.ConfigFileUsed(),
		Args:           fs.Args(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log-level", err.Error(), c.LogLevel)
	}
	if c.HTTPTimeout <= 0 {
		return errors.NewValidationError("http-timeout", "must be positive", c.HTTPTimeout)
	}
	if c.HTTPMaxTries == 0 {
		return errors.NewValidationError("http-max-tries", "must be at least 1", c.HTTPMaxTries)
	}
	if c.DatasetBaseURL != "" && !strings.HasSuffix(c.DatasetBaseURL, "/") {
		c.DatasetBaseURL += "/"
	}
	return nil
}

// Fetcher builds the download client described by the config.
func (c *Config) Fetcher() *datasets.Fetcher {
	return datasets.NewFetcher(
		datasets.WithTimeout(c.HTTPTimeout),
		datasets.WithMaxTries(c.HTTPMaxTries),
	)
}

// Loader builds the dataset loader described by the config.
func (c *Config) Loader() *datasets.Loader {
	return datasets.NewLoader(
		datasets.WithDataHome(c.DataHome),
		datasets.WithBaseURL(c.DatasetBaseURL),
		datasets.WithFetcher(c.Fetcher()),
	)
}
