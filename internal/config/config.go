package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
	"gopkg.in/yaml.v3"
)

// Config is the server's file config. IntervalMs is passed to the collector
// as is, so non-positive values get the collector's default interval.
type Config struct {
	Listen         string `yaml:"listen"`
	APIPath        string `yaml:"api_path"`
	IntervalMs     int    `yaml:"interval_ms"`
	LogLevel       string `yaml:"log_level"`
	PrometheusPath string `yaml:"prometheus_path"`
	Dashboard      bool   `yaml:"dashboard"`
}

func Default() *Config {
	return &Config{
		Listen:         ":8080",
		APIPath:        "/metrics",
		IntervalMs:     1000,
		LogLevel:       "info",
		PrometheusPath: "/prometheus",
		Dashboard:      true,
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if _, ok := levels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.PrometheusPath != "" && !strings.HasPrefix(c.PrometheusPath, "/") {
		return fmt.Errorf("prometheus_path must start with /, got %q", c.PrometheusPath)
	}
	return nil
}

var levels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// Level maps LogLevel to a gommon level, defaulting to INFO.
func (c *Config) Level() log.Lvl {
	if lvl, ok := levels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return log.INFO
}
