// Package config provides configuration loading from YAML files.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Bot      BotConfig               `yaml:"bot"`
	Nodes    []NodeConfig            `yaml:"nodes" validate:"required,min=1,dive"`
	Resolver ResolverConfig          `yaml:"resolver"`
	Player   PlayerConfig            `yaml:"player"`
	Commands CommandsConfig          `yaml:"commands"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Status   StatusConfig            `yaml:"status"`
	Hooks    HooksConfig             `yaml:"hooks"`
}

// BotConfig represents the chat gateway configuration.
type BotConfig struct {
	Token      string `yaml:"token" validate:"required"`
	Prefix     string `yaml:"prefix" default:"!" validate:"required"`
	EmbedColor string `yaml:"embed_color" default:"#0061ff" validate:"hexcolor"`
}

// NodeConfig represents a single audio node.
type NodeConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" default:"2333" validate:"gt=0,lte=65535"`
	Password string `yaml:"password"`
	Secure   bool   `yaml:"secure"`
}

// Address returns host:port.
func (n NodeConfig) Address() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// ResolverConfig represents track resolution configuration.
type ResolverConfig struct {
	DefaultSearchPlatform string         `yaml:"default_search_platform" default:"ytmsearch" validate:"required"`
	Sources               []SourceConfig `yaml:"sources" validate:"dive"`
}

// SourceConfig represents a catalog source configuration.
type SourceConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// PlayerConfig represents per-session playback configuration.
type PlayerConfig struct {
	DefaultVolume   int `yaml:"default_volume" default:"100" validate:"gte=0,lte=100"`
	NotifyTimeoutMs int `yaml:"notify_timeout_ms" default:"5000" validate:"gt=0,lte=60000"`
}

// CommandsConfig represents command rate limiting. A zero rate disables it.
type CommandsConfig struct {
	RatePerSec float64 `yaml:"rate_per_sec" validate:"gte=0"`
	Burst      int     `yaml:"burst" default:"3" validate:"gte=1"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// StatusConfig represents the status dashboard configuration.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:":3000"`
	Token   string `yaml:"token"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// envOverrides holds values that environment variables may supply.
type envOverrides struct {
	BotToken            string `env:"BOT_TOKEN"`
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	LavalinkPassword    string `env:"LAVALINK_PASSWORD"`
	Port                string `env:"PORT"`
	StatusToken         string `env:"STATUS_TOKEN"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses, defaults and validates configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return errors.Wrap(err, "failed to parse environment")
	}

	if e.BotToken != "" {
		c.Bot.Token = e.BotToken
	}
	if e.LavalinkPassword != "" {
		for i := range c.Nodes {
			c.Nodes[i].Password = e.LavalinkPassword
		}
	}
	if e.Port != "" {
		c.Status.Addr = ":" + e.Port
	}
	if e.StatusToken != "" {
		c.Status.Token = e.StatusToken
	}
	for i := range c.Resolver.Sources {
		if c.Resolver.Sources[i].Type != "spotify" {
			continue
		}
		if c.Resolver.Sources[i].Settings == nil {
			c.Resolver.Sources[i].Settings = make(map[string]any)
		}
		if e.SpotifyClientID != "" {
			c.Resolver.Sources[i].Settings["client_id"] = e.SpotifyClientID
		}
		if e.SpotifyClientSecret != "" {
			c.Resolver.Sources[i].Settings["client_secret"] = e.SpotifyClientSecret
		}
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	names := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if names[n.Name] {
			return errors.Newf("duplicate node name: %s", n.Name)
		}
		names[n.Name] = true
	}

	return nil
}

// Color returns the embed colour as an integer.
func (c *Config) Color() int {
	v, err := strconv.ParseInt(strings.TrimPrefix(c.Bot.EmbedColor, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}
