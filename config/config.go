// Package config loads allocator settings from defaults, an optional YAML
// file, ALLOCATOR_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"q.log/allocator/simplex"
)

const EnvPrefix = "ALLOCATOR"

type Config struct {
	LogLevel         string         `mapstructure:"log_level"`
	Development      bool           `mapstructure:"development"`
	AssetsFile       string         `mapstructure:"assets_file"`
	TargetVolatility float64        `mapstructure:"target_volatility"`
	Solver           SolverConfig   `mapstructure:"solver"`
	Frontier         FrontierConfig `mapstructure:"frontier"`
	Server           ServerConfig   `mapstructure:"server"`
}

type SolverConfig struct {
	Tolerance       float64 `mapstructure:"tolerance"`
	IterationFactor int     `mapstructure:"iteration_factor"`
	IterationLimit  int     `mapstructure:"iteration_limit"`
}

type FrontierConfig struct {
	Steps   int `mapstructure:"steps"`
	Workers int `mapstructure:"workers"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// flag name -> viper key
var flagKeys = map[string]string{
	"log-level":         "log_level",
	"development":       "development",
	"assets":            "assets_file",
	"target-volatility": "target_volatility",
	"tolerance":         "solver.tolerance",
	"iteration-factor":  "solver.iteration_factor",
	"iteration-limit":   "solver.iteration_limit",
	"steps":             "frontier.steps",
	"workers":           "frontier.workers",
	"addr":              "server.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("development", false)
	v.SetDefault("assets_file", "")
	v.SetDefault("target_volatility", 0.22)
	v.SetDefault("solver.tolerance", simplex.DefaultTolerance)
	v.SetDefault("solver.iteration_factor", simplex.DefaultIterationFactor)
	v.SetDefault("solver.iteration_limit", 0)
	v.SetDefault("frontier.steps", 10)
	v.SetDefault("frontier.workers", 0)
	v.SetDefault("server.addr", ":8080")
}

// RegisterFlags adds the persistent allocator flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("log-level", "info", "log level: error, warn, info, debug or trace")
	fs.Bool("development", false, "human readable console logs")
	fs.String("assets", "", "YAML file with the asset universe (defaults to the built-in sample)")
	fs.Float64("target-volatility", 0.22, "maximum weighted portfolio volatility")
	fs.Float64("tolerance", simplex.DefaultTolerance, "relative solver tolerance")
	fs.Int("iteration-factor", simplex.DefaultIterationFactor, "pivot limit as a multiple of columns plus rows")
	fs.Int("iteration-limit", 0, "absolute pivot limit, overrides iteration-factor when positive")
	fs.Int("steps", 10, "number of targets in a frontier sweep")
	fs.Int("workers", 0, "concurrent frontier solves, 0 means GOMAXPROCS")
	fs.String("addr", ":8080", "HTTP listen address")
}

// Load resolves the configuration. Flags present in fs take precedence over
// the environment, which takes precedence over the config file named by the
// --config flag.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "binding flag %s", name)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrap(err, "reading config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the solver or server cannot use.
func (c *Config) Validate() error {
	switch {
	case math.IsNaN(c.TargetVolatility) || math.IsInf(c.TargetVolatility, 0) || c.TargetVolatility < 0:
		return errors.Errorf("target_volatility must be finite and non-negative, got %g", c.TargetVolatility)
	case !(c.Solver.Tolerance > 0) || c.Solver.Tolerance >= 1:
		return errors.Errorf("solver.tolerance must be in (0, 1), got %g", c.Solver.Tolerance)
	case c.Solver.IterationFactor < 1:
		return errors.Errorf("solver.iteration_factor must be positive, got %d", c.Solver.IterationFactor)
	case c.Solver.IterationLimit < 0:
		return errors.Errorf("solver.iteration_limit must not be negative, got %d", c.Solver.IterationLimit)
	case c.Frontier.Steps < 1:
		return errors.Errorf("frontier.steps must be positive, got %d", c.Frontier.Steps)
	case c.Frontier.Workers < 0:
		return errors.Errorf("frontier.workers must not be negative, got %d", c.Frontier.Workers)
	case c.Server.Addr == "":
		return errors.New("server.addr must be set")
	}
	return nil
}

// SolverOptions translates the solver section into simplex options.
func (c *Config) SolverOptions() []simplex.Option {
	opts := []simplex.Option{
		simplex.WithTolerance(c.Solver.Tolerance),
		simplex.WithIterationFactor(c.Solver.IterationFactor),
	}
	if c.Solver.IterationLimit > 0 {
		opts = append(opts, simplex.WithIterationLimit(c.Solver.IterationLimit))
	}
	return opts
}
