package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"gridscope/internal/layout"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version" toml:"version"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Backend  BackendConfig  `yaml:"backend" toml:"backend"`
	Viewport ViewportConfig `yaml:"viewport" toml:"viewport"`
	Layout   LayoutConfig   `yaml:"layout" toml:"layout"`
	History  HistoryConfig  `yaml:"history" toml:"history"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Initial  InitialConfig  `yaml:"initial" toml:"initial"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// BackendConfig points at the power-flow computation service
type BackendConfig struct {
	URL     string   `yaml:"url" toml:"url"`
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// ViewportConfig is the initial drawing area
type ViewportConfig struct {
	Width  float64 `yaml:"width" toml:"width"`
	Height float64 `yaml:"height" toml:"height"`
}

// LayoutConfig overrides simulation constants and per-scale force profiles
type LayoutConfig struct {
	VelocityDecay *float64                   `yaml:"velocity_decay,omitempty" toml:"velocity_decay,omitempty"`
	AlphaMin      *float64                   `yaml:"alpha_min,omitempty" toml:"alpha_min,omitempty"`
	AlphaDecay    *float64                   `yaml:"alpha_decay,omitempty" toml:"alpha_decay,omitempty"`
	ReheatAlpha   *float64                   `yaml:"reheat_alpha,omitempty" toml:"reheat_alpha,omitempty"`
	Seed          *uint64                    `yaml:"seed,omitempty" toml:"seed,omitempty"`
	Profiles      map[string]ProfileOverride `yaml:"profiles,omitempty" toml:"profiles,omitempty"`
}

// ProfileOverride replaces selected fields of one scale's force profile
type ProfileOverride struct {
	LinkDistance   *float64 `yaml:"link_distance,omitempty" toml:"link_distance,omitempty"`
	LinkStrength   *float64 `yaml:"link_strength,omitempty" toml:"link_strength,omitempty"`
	Charge         *float64 `yaml:"charge,omitempty" toml:"charge,omitempty"`
	CollideRadius  *float64 `yaml:"collide_radius,omitempty" toml:"collide_radius,omitempty"`
	CenterStrength *float64 `yaml:"center_strength,omitempty" toml:"center_strength,omitempty"`
}

// toLayout maps the override onto the layout package's type
func (o ProfileOverride) toLayout() layout.Override {
	return layout.Override{
		LinkDistance:   o.LinkDistance,
		LinkStrength:   o.LinkStrength,
		Charge:         o.Charge,
		CollideRadius:  o.CollideRadius,
		CenterStrength: o.CenterStrength,
	}
}

// HistoryConfig holds calculation history settings. An empty path disables
// history.
type HistoryConfig struct {
	Path  string `yaml:"path" toml:"path"`
	Limit int    `yaml:"limit" toml:"limit"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level LogLevel `yaml:"level" toml:"level"`
}

// InitialConfig selects the startup topology. A case file skips the
// backend's grid-data call.
type InitialConfig struct {
	CaseFile string `yaml:"case_file,omitempty" toml:"case_file,omitempty"`
}

// Duration wraps time.Duration for YAML and TOML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by TOML
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
