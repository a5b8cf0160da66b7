package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/presbrey/ircd/irc"
)

// Config represents the server configuration
type Config struct {
	// Server settings
	Server struct {
		Name   string   `yaml:"name" toml:"name" json:"name" env:"IRCD_SERVER_NAME" validate:"required,hostname_rfc1123"`
		Host   string   `yaml:"host" toml:"host" json:"host" env:"IRCD_HOST"`
		Port   int      `yaml:"port" toml:"port" json:"port" env:"IRCD_PORT" validate:"gte=0,lte=65535"`
		Banner string   `yaml:"banner" toml:"banner" json:"banner" env:"IRCD_BANNER" validate:"required"`
		MOTD   []string `yaml:"motd" toml:"motd" json:"motd" env:"IRCD_MOTD" envSeparator:"|"`
		Debug  bool     `yaml:"debug" toml:"debug" json:"debug" env:"IRCD_DEBUG"`
	} `yaml:"server" toml:"server" json:"server"`

	// TLS settings
	TLS struct {
		Enabled    bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_TLS_ENABLED"`
		Host       string `yaml:"host" toml:"host" json:"host" env:"IRCD_TLS_HOST"`
		Port       int    `yaml:"port" toml:"port" json:"port" env:"IRCD_TLS_PORT" validate:"gte=0,lte=65535"`
		Cert       string `yaml:"cert" toml:"cert" json:"cert" env:"IRCD_TLS_CERT"`
		Key        string `yaml:"key" toml:"key" json:"key" env:"IRCD_TLS_KEY"`
		Generation bool   `yaml:"auto_generate" toml:"auto_generate" json:"auto_generate" env:"IRCD_TLS_AUTO_GENERATE"`
	} `yaml:"tls" toml:"tls" json:"tls"`

	// Name length bounds
	Limits struct {
		NickLength    int `yaml:"nick_length" toml:"nick_length" json:"nick_length" env:"IRCD_NICK_LENGTH" validate:"min=1,max=512"`
		ChannelLength int `yaml:"channel_length" toml:"channel_length" json:"channel_length" env:"IRCD_CHANNEL_LENGTH" validate:"min=2,max=512"`
		TopicLength   int `yaml:"topic_length" toml:"topic_length" json:"topic_length" env:"IRCD_TOPIC_LENGTH" validate:"min=0,max=512"`
		UserLength    int `yaml:"user_length" toml:"user_length" json:"user_length" env:"IRCD_USER_LENGTH" validate:"min=1,max=512"`
	} `yaml:"limits" toml:"limits" json:"limits"`

	// Per-connection timeouts
	Session struct {
		WriteTimeout     time.Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" env:"IRCD_WRITE_TIMEOUT"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout" json:"handshake_timeout" env:"IRCD_HANDSHAKE_TIMEOUT"`
	} `yaml:"session" toml:"session" json:"session"`

	// Admin HTTP settings
	Admin struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_ADMIN_ENABLED"`
		Host    string `yaml:"host" toml:"host" json:"host" env:"IRCD_ADMIN_HOST"`
		Port    int    `yaml:"port" toml:"port" json:"port" env:"IRCD_ADMIN_PORT" validate:"gte=0,lte=65535"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	// Event log settings
	EventLog struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_EVENTLOG_ENABLED"`
		Driver  string `yaml:"driver" toml:"driver" json:"driver" env:"IRCD_EVENTLOG_DRIVER" validate:"omitempty,oneof=sqlite mysql postgres"`
		DSN     string `yaml:"dsn" toml:"dsn" json:"dsn" env:"IRCD_EVENTLOG_DSN" validate:"required_if=Enabled true"`
		Retries int    `yaml:"retries" toml:"retries" json:"retries" env:"IRCD_EVENTLOG_RETRIES" validate:"gte=0,lte=100"`
	} `yaml:"eventlog" toml:"eventlog" json:"eventlog"`

	// Configuration source for rehashing
	Source string `yaml:"-" toml:"-" json:"-"`
}

var validate = validator.New()

// Default returns a configuration holding only the defaults
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "irc.local"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 6667
	cfg.Server.Banner = "ircd 1.0.0"
	cfg.Server.MOTD = []string{"Message of the day."}

	cfg.TLS.Host = "0.0.0.0"
	cfg.TLS.Port = 6697
	cfg.TLS.Generation = true

	cfg.Limits.NickLength = irc.DefaultNickLength
	cfg.Limits.ChannelLength = irc.DefaultChannelLength
	cfg.Limits.TopicLength = irc.DefaultTopicLength
	cfg.Limits.UserLength = irc.DefaultUserLength

	cfg.Session.WriteTimeout = 30 * time.Second
	cfg.Session.HandshakeTimeout = 10 * time.Second

	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8080

	cfg.EventLog.Driver = "sqlite"
	cfg.EventLog.DSN = "ircd-events.db"
	cfg.EventLog.Retries = 5
	return cfg
}

// Load loads configuration from a file or URL. An empty source yields the
// defaults. Environment variables override either.
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFromSource(source); err != nil {
			return nil, err
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reload reloads the configuration from the original source or a new source
func (c *Config) Reload(newSource string) error {
	if newSource != "" {
		c.Source = newSource
	}

	newCfg := Default()
	if c.Source != "" {
		if err := newCfg.loadFromSource(c.Source); err != nil {
			return err
		}
	}
	if err := newCfg.finish(); err != nil {
		return err
	}

	*c = *newCfg
	return nil
}

func (c *Config) finish() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return c.Validate()
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadFromSource loads configuration from a file or URL
func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return fmt.Errorf("failed to load config from URL: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to load config from URL, status: %s", resp.Status)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read config from URL: %w", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Determine the format based on file extension
	switch {
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	c.Source = source
	return nil
}

// NameLimits returns the configured name bounds
func (c *Config) NameLimits() irc.Limits {
	return irc.Limits{
		NickLength:    c.Limits.NickLength,
		ChannelLength: c.Limits.ChannelLength,
		TopicLength:   c.Limits.TopicLength,
		UserLength:    c.Limits.UserLength,
	}
}

// GetListenAddress returns the formatted listen address for the server
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetTLSListenAddress returns the formatted listen address for TLS clients
func (c *Config) GetTLSListenAddress() string {
	return fmt.Sprintf("%s:%d", c.TLS.Host, c.TLS.Port)
}

// GetAdminListenAddress returns the formatted listen address for the admin API
func (c *Config) GetAdminListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}
