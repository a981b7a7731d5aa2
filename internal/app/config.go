// Package app wires the pipeline together: listing remote captures, syncing
// the local cache, planning buckets, and converting the stale ones.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/solarlog/vbusmirror/convert"
	"github.com/solarlog/vbusmirror/filter"
	"github.com/solarlog/vbusmirror/remote"
	"github.com/solarlog/vbusmirror/resolve"
	"github.com/solarlog/vbusmirror/vbus"
)

// DefaultTimezone is the local civil zone for bounded-day output boundaries.
const DefaultTimezone = "Europe/Berlin"

// Config holds everything a run needs, resolved once before any I/O and
// threaded explicitly; nothing is read ambiently during the run.
type Config struct {
	Hosts     []string
	Dir       string // base directory; one subdirectory per host
	Timezone  string
	Strategy  resolve.Strategy
	Retention time.Duration
	Filter    string // optional row filter expression

	Logger *slog.Logger
	Clock  clockwork.Clock
	Client remote.Doer
	Spec   *vbus.Spec

	location *time.Location
	filterFn func(filter.Row) bool
}

// Validate fills defaults and resolves the timezone, packet spec, and row
// filter. It must be called before RunSync or RunConvert.
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return errors.New("at least one host is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Strategy == "" {
		c.Strategy = resolve.StrategyBoundedDay
	}
	if _, err := resolve.ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.Retention <= 0 {
		c.Retention = convert.DefaultRetention
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Client == nil {
		c.Client = remote.DefaultClient
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	if c.Spec == nil {
		spec, err := vbus.EmbeddedSpec()
		if err != nil {
			return err
		}
		c.Spec = spec
	}

	if c.Filter != "" {
		fn, err := filter.Compile(c.Filter)
		if err != nil {
			return err
		}
		c.filterFn = fn
	}
	return nil
}

// FileConfig is the YAML config file shape. Every field is optional; values
// from the file never override what flags set explicitly.
type FileConfig struct {
	Hosts     []string `yaml:"hosts"`
	Dir       string   `yaml:"dir"`
	Timezone  string   `yaml:"timezone"`
	Strategy  string   `yaml:"strategy"`
	Retention string   `yaml:"retention"` // Go duration string, e.g. "15m"
	Filter    string   `yaml:"filter"`
}

// LoadConfigFile reads and parses a YAML config file.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// ApplyFile fills unset Config fields from a config file.
func (c *Config) ApplyFile(fc FileConfig) error {
	if len(c.Hosts) == 0 {
		c.Hosts = fc.Hosts
	}
	if c.Dir == "" {
		c.Dir = fc.Dir
	}
	if c.Timezone == "" {
		c.Timezone = fc.Timezone
	}
	if c.Strategy == "" {
		c.Strategy = resolve.Strategy(fc.Strategy)
	}
	if c.Retention <= 0 && fc.Retention != "" {
		d, err := time.ParseDuration(fc.Retention)
		if err != nil {
			return fmt.Errorf("parse retention %q: %w", fc.Retention, err)
		}
		c.Retention = d
	}
	if c.Filter == "" {
		c.Filter = fc.Filter
	}
	return nil
}
