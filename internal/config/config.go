// Package config loads the settings shared by the findiff command and server.
package config

import (
	"io/ioutil"
	"os"

	"github.com/inconshreveable/log15"
	"gopkg.in/yaml.v2"

	"github.com/njchilds90/findiff"
)

// EnvVar names the environment variable consulted when no path is given.
const EnvVar = "FINDIFF_CONFIG"

var ConfigError = findiff.Error.NewClass("ConfigError")

type Config struct {
	Step     float64 `yaml:"step"`
	Order    int     `yaml:"order"`
	MaxOrder int     `yaml:"max_order"`
	Listen   string  `yaml:"listen"`
	LogLevel string  `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Step:     1e-3,
		Order:    1,
		MaxOrder: 16,
		Listen:   ":8080",
		LogLevel: "info",
	}
}

/*
	Load reads the YAML file at path over the defaults.

	An empty path falls back to $FINDIFF_CONFIG; if that is unset too the
	defaults are returned as-is.
*/
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return cfg, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, ConfigError.Wrap(err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, ConfigError.New("%s: %v", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with. A zero step is
// allowed by the engine but never useful as a default, so it is refused here.
func (c Config) Validate() error {
	switch {
	case !(c.Step > 0):
		return ConfigError.New("step must be positive, got %g", c.Step)
	case c.MaxOrder < 1:
		return ConfigError.New("max_order must be at least 1, got %d", c.MaxOrder)
	case c.Order < 1 || c.Order > c.MaxOrder:
		return ConfigError.New("order must be in [1, %d], got %d", c.MaxOrder, c.Order)
	case c.Listen == "":
		return ConfigError.New("listen address is empty")
	}
	if _, err := log15.LvlFromString(c.LogLevel); err != nil {
		return ConfigError.New("log_level: %v", err)
	}
	return nil
}

// Logger returns a root logger filtered at the configured level.
func (c Config) Logger(ctx ...interface{}) log15.Logger {
	lvl, err := log15.LvlFromString(c.LogLevel)
	if err != nil {
		lvl = log15.LvlInfo
	}
	log := log15.New(ctx...)
	log.SetHandler(log15.LvlFilterHandler(lvl, log15.StderrHandler))
	return log
}

// Toolbox returns the tool dispatcher configured with these limits.
func (c Config) Toolbox() findiff.Toolbox {
	return findiff.Toolbox{MaxOrder: c.MaxOrder, DefaultStep: c.Step}
}
