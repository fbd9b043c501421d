package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the authshell daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	AuthService AuthServiceConfig `yaml:"auth_service"`
	Database    DatabaseConfig    `yaml:"database"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Logging     LoggingConfig     `yaml:"logging"`
	Security    SecurityConfig    `yaml:"security"`
}

// AuthServiceConfig contains connection settings for the upstream
// authentication service. The service itself is a black box: authshell
// only needs to know where it lives and how long to wait for it.
type AuthServiceConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// DatabaseConfig contains SQLite session-vault settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains settings for the local HTTP surface exposed to the
// rendering layer.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the state-stream WebSocket.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains client-side security tuning.
type SecurityConfig struct {
	// CooldownBase is the base cooldown (seconds) suggested after the third
	// consecutive failed login attempt. The cooldown doubles per further
	// failure, capped at CooldownMax.
	CooldownBase int `yaml:"cooldown_base"`
	CooldownMax  int `yaml:"cooldown_max"`
}

// Load reads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result.
//
// Environment variables follow the pattern AUTHSHELL_SECTION_KEY,
// for example AUTHSHELL_DATABASE_PATH or AUTHSHELL_AUTH_SERVICE_URL.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		AuthService: AuthServiceConfig{
			BaseURL: "http://localhost:8620",
			Timeout: 15,
		},
		Database: DatabaseConfig{
			Path:        "./data/authshell.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8610,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			CooldownBase: 5,
			CooldownMax:  300,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTHSHELL_AUTH_SERVICE_URL"); v != "" {
		cfg.AuthService.BaseURL = v
	}
	if v := os.Getenv("AUTHSHELL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AUTHSHELL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("AUTHSHELL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.AuthService.BaseURL == "" {
		errs = append(errs, "auth_service.base_url is required")
	} else if !strings.HasPrefix(c.AuthService.BaseURL, "http://") &&
		!strings.HasPrefix(c.AuthService.BaseURL, "https://") {
		errs = append(errs, "auth_service.base_url must be an http(s) URL")
	}

	if c.AuthService.Timeout < 1 {
		errs = append(errs, "auth_service.timeout must be at least 1 second")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Security.CooldownBase < 0 || c.Security.CooldownMax < c.Security.CooldownBase {
		errs = append(errs, "security.cooldown_max must be >= security.cooldown_base")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetAuthServiceTimeout returns the upstream request timeout as a Duration.
func (c *Config) GetAuthServiceTimeout() time.Duration {
	return time.Duration(c.AuthService.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
