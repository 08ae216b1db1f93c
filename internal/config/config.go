// ABOUTME: Configuration loading and parsing for the famlink server
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
)

// MinJWTSecretLength mirrors the verifier's minimum HS256 secret size.
const MinJWTSecretLength = 32

// Backend kinds
const (
	BackendGoogle = "google"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Blob store kinds
const (
	BlobGCS    = "gcs"
	BlobMemory = "memory"
)

// Config represents the complete famlink configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Backend   BackendConfig   `yaml:"backend" toml:"backend"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Blob      BlobConfig      `yaml:"blob" toml:"blob"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	CORS      CORSConfig      `yaml:"cors" toml:"cors"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr       string        `yaml:"http_addr" toml:"http_addr"`
	RequestTimeout time.Duration `yaml:"-" toml:"-"`

	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// BackendConfig selects and configures the workbook backend
type BackendConfig struct {
	Kind            string        `yaml:"kind" toml:"kind"`
	SpreadsheetID   string        `yaml:"spreadsheet_id" toml:"spreadsheet_id"`
	CredentialsFile string        `yaml:"credentials_file" toml:"credentials_file"`
	RemoteTimeout   time.Duration `yaml:"-" toml:"-"`

	RemoteTimeoutRaw string `yaml:"remote_timeout" toml:"remote_timeout"`
}

// DatabaseConfig holds the SQLite workbook configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"`
}

// BlobConfig selects and configures photo storage
type BlobConfig struct {
	Kind            string `yaml:"kind" toml:"kind"`
	Bucket          string `yaml:"bucket" toml:"bucket"`
	Prefix          string `yaml:"prefix" toml:"prefix"`
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// CORSConfig holds cross-origin settings for the API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
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

// DefaultPath returns the config file location.
// Priority: FAMLINK_CONFIG env var > XDG_CONFIG_HOME/famlink/famlink.yaml > ~/.config/famlink/famlink.yaml
func DefaultPath() string {
	if envPath := os.Getenv("FAMLINK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "famlink.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "famlink", "famlink.yaml")
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

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw configuration bytes, applies defaults and validates.
func Parse(data []byte, isTOML bool) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
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

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = BackendSQLite
	}
	if c.Backend.RemoteTimeout == 0 {
		c.Backend.RemoteTimeout = 10 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Blob.Kind == "" {
		c.Blob.Kind = BlobMemory
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Backend.Kind {
	case BackendGoogle:
		if c.Backend.SpreadsheetID == "" {
			return fmt.Errorf("backend.spreadsheet_id is required for the google backend")
		}
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite backend")
		}
		if c.Database.Driver != "sqlite" && c.Database.Driver != "sqlite3" {
			return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("backend.kind must be google, sqlite or memory, got %q", c.Backend.Kind)
	}

	switch c.Blob.Kind {
	case BlobGCS:
		if c.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket is required for the gcs store")
		}
	case BlobMemory:
	default:
		return fmt.Errorf("blob.kind must be gcs or memory, got %q", c.Blob.Kind)
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.RequestTimeoutRaw != "" {
		cfg.Server.RequestTimeout, err = time.ParseDuration(cfg.Server.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Server.RequestTimeoutRaw, err)
		}
	}

	if cfg.Backend.RemoteTimeoutRaw != "" {
		cfg.Backend.RemoteTimeout, err = time.ParseDuration(cfg.Backend.RemoteTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing remote_timeout %q: %w", cfg.Backend.RemoteTimeoutRaw, err)
		}
	}

	return nil
}
