// ABOUTME: Configuration loading and parsing for coven-mailbox
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-mailbox/internal/mailbox"
)

// Identity sources
const (
	IdentityStatic = "static"
	IdentitySystem = "system"
	IdentitySQLite = "sqlite"
)

// Defaults applied when a field is left empty
const (
	DefaultCapacity    = 64
	DefaultVisibility  = "unread_only"
	DefaultIdentity    = IdentitySystem
	DefaultCacheTTL    = 5 * time.Minute
	DefaultCacheSize   = 1024
	DefaultTokenTTL    = 30 * 24 * time.Hour
	DefaultMetricsPath = "/metrics"
)

// Config represents the complete coven-mailbox configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Mailbox   MailboxConfig   `yaml:"mailbox" toml:"mailbox"`
	Identity  IdentityConfig  `yaml:"identity" toml:"identity"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	HTTPAddr   string `yaml:"http_addr" toml:"http_addr"`
	SocketPath string `yaml:"socket_path" toml:"socket_path"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// MailboxConfig holds the limits of the shared mailbox
type MailboxConfig struct {
	Capacity                int    `yaml:"capacity" toml:"capacity"`
	Visibility              string `yaml:"visibility" toml:"visibility"`
	RejectUnknownRecipients bool   `yaml:"reject_unknown_recipients" toml:"reject_unknown_recipients"`
}

// UserEntry maps a uid to a display name for the static identity source
type UserEntry struct {
	UID  uint32 `yaml:"uid" toml:"uid"`
	Name string `yaml:"name" toml:"name"`
}

// IdentityConfig selects how uids are resolved to names
type IdentityConfig struct {
	Source    string        `yaml:"source" toml:"source"`
	Users     []UserEntry   `yaml:"users" toml:"users"`
	CacheTTL  time.Duration `yaml:"-" toml:"-"`
	CacheSize int           `yaml:"cache_size" toml:"cache_size"`

	// Raw string values for unmarshaling
	CacheTTLRaw string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-" toml:"-"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data, formatFor(path))
}

// Format is a configuration file syntax
type Format string

// Supported formats
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes, defaults and validates raw configuration content.
func Parse(data []byte, format Format) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// envVarPattern matches ${VAR_NAME}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Mailbox.Capacity == 0 {
		c.Mailbox.Capacity = DefaultCapacity
	}
	if c.Mailbox.Visibility == "" {
		c.Mailbox.Visibility = DefaultVisibility
	}
	if c.Identity.Source == "" {
		c.Identity.Source = DefaultIdentity
	}
	if c.Identity.CacheTTLRaw == "" {
		c.Identity.CacheTTL = DefaultCacheTTL
	}
	if c.Identity.CacheSize == 0 {
		c.Identity.CacheSize = DefaultCacheSize
	}
	if c.Auth.TokenTTLRaw == "" {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// At least one listener is required
	if c.Server.HTTPAddr == "" && c.Server.SocketPath == "" && !c.Tailscale.Enabled {
		return fmt.Errorf("server.http_addr or server.socket_path is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	// Network listeners authenticate with bearer tokens
	if (c.Server.HTTPAddr != "" || c.Tailscale.Enabled) && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required for network listeners")
	}

	if c.Mailbox.Capacity < 1 {
		return fmt.Errorf("mailbox.capacity must be at least 1, got %d", c.Mailbox.Capacity)
	}

	if _, err := mailbox.ParseVisibility(c.Mailbox.Visibility); err != nil {
		return fmt.Errorf("mailbox.visibility: %w", err)
	}

	switch c.Identity.Source {
	case IdentityStatic:
		if len(c.Identity.Users) == 0 {
			return fmt.Errorf("identity.users is required when identity.source is %q", IdentityStatic)
		}
	case IdentitySQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required when identity.source is %q", IdentitySQLite)
		}
	case IdentitySystem:
	default:
		return fmt.Errorf("identity.source must be one of static, system, sqlite; got %q", c.Identity.Source)
	}

	if c.Identity.CacheSize < 0 {
		return fmt.Errorf("identity.cache_size must not be negative")
	}

	return nil
}

// VisibilityPolicy returns the parsed mailbox visibility.
func (c *Config) VisibilityPolicy() mailbox.Visibility {
	v, _ := mailbox.ParseVisibility(c.Mailbox.Visibility)
	return v
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Identity.CacheTTLRaw != "" {
		cfg.Identity.CacheTTL, err = time.ParseDuration(cfg.Identity.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl %q: %w", cfg.Identity.CacheTTLRaw, err)
		}
	}

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	return nil
}
