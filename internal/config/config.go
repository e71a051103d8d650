// Package config provides configuration management for gridscope.
//
// Config file locations (priority order):
//  1. $GRIDSCOPE_CONFIG
//  2. ./gridscope.yaml or ./gridscope.toml
//  3. $XDG_CONFIG_HOME/gridscope/config.yaml
//  4. ~/.config/gridscope/config.yaml
//  5. /etc/gridscope/config.yaml
//
// The format follows the file extension: .toml files are TOML, anything
// else is YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gridscope/internal/domain"
	"gridscope/internal/layout"
)

// Defaults
const (
	DefaultAddr           = ":8080"
	DefaultBackendURL     = "http://localhost:5000"
	DefaultBackendTimeout = 30 * time.Second
	DefaultWidth          = 800
	DefaultHeight         = 600
	DefaultHistoryLimit   = 50
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, path, fmt.Errorf("parse config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, path, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Backend.URL == "" {
		c.Backend.URL = DefaultBackendURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(DefaultBackendTimeout)
	}
	if c.Viewport.Width == 0 {
		c.Viewport.Width = DefaultWidth
	}
	if c.Viewport.Height == 0 {
		c.Viewport.Height = DefaultHeight
	}
	if c.History.Limit == 0 {
		c.History.Limit = DefaultHistoryLimit
	}
	if c.Log.Level == "" {
		c.Log.Level = LevelInfo
	}
}

// Validate reports every problem with the config at once
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.url: %q is not an absolute URL", c.Backend.URL))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, errors.New("backend.timeout: must not be negative"))
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		errs = append(errs, errors.New("viewport: width and height must be positive"))
	}
	if !c.Log.Level.Valid() {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	if v := c.Layout.VelocityDecay; v != nil && (*v <= 0 || *v > 1) {
		errs = append(errs, errors.New("layout.velocity_decay: must be in (0, 1]"))
	}
	if v := c.Layout.AlphaDecay; v != nil && (*v <= 0 || *v >= 1) {
		errs = append(errs, errors.New("layout.alpha_decay: must be in (0, 1)"))
	}
	if v := c.Layout.AlphaMin; v != nil && (*v <= 0 || *v >= 1) {
		errs = append(errs, errors.New("layout.alpha_min: must be in (0, 1)"))
	}
	if v := c.Layout.ReheatAlpha; v != nil && (*v <= 0 || *v > 1) {
		errs = append(errs, errors.New("layout.reheat_alpha: must be in (0, 1]"))
	}

	known := layout.DefaultProfiles()
	for _, name := range c.profileNames() {
		if _, ok := known[domain.Scale(name)]; !ok {
			errs = append(errs, fmt.Errorf("layout.profiles: unknown scale %q", name))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) profileNames() []string {
	names := make([]string, 0, len(c.Layout.Profiles))
	for name := range c.Layout.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LayoutProfiles returns the default force profiles with configured
// overrides applied
func (c *Config) LayoutProfiles() layout.Profiles {
	overrides := make(map[domain.Scale]layout.Override, len(c.Layout.Profiles))
	for name, o := range c.Layout.Profiles {
		overrides[domain.Scale(name)] = o.toLayout()
	}
	return layout.DefaultProfiles().WithOverrides(overrides)
}

// LayoutParams returns the simulation constants with configured overrides
// applied
func (c *Config) LayoutParams() layout.Params {
	p := layout.DefaultParams()
	if v := c.Layout.VelocityDecay; v != nil {
		p.VelocityDecay = *v
	}
	if v := c.Layout.AlphaMin; v != nil {
		p.AlphaMin = *v
	}
	if v := c.Layout.AlphaDecay; v != nil {
		p.AlphaDecay = *v
	}
	if v := c.Layout.ReheatAlpha; v != nil {
		p.ReheatAlpha = *v
	}
	if v := c.Layout.Seed; v != nil {
		p.Seed = *v
	}
	return p
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, Backend: %s (timeout %s)\n",
		c.Server.Addr, c.Backend.URL, c.Backend.Timeout.Duration())
	summary += fmt.Sprintf("Viewport: %gx%g, Log level: %s\n",
		c.Viewport.Width, c.Viewport.Height, c.Log.Level)

	history := "disabled"
	if c.History.Path != "" {
		history = c.History.Path
	}
	summary += fmt.Sprintf("History: %s", history)

	if names := c.profileNames(); len(names) > 0 {
		summary += fmt.Sprintf("\nProfile overrides: %s", strings.Join(names, ", "))
	}
	if c.Initial.CaseFile != "" {
		summary += fmt.Sprintf("\nInitial case file: %s", c.Initial.CaseFile)
	}

	return summary
}
