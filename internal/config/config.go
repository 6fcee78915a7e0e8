package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, e.g. ":8318".
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // Postgres DSN or SQLite path.
}

// JWTConfig holds admin token signing settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry-hours"`
}

// StripeConfig holds payment gateway credentials.
type StripeConfig struct {
	SecretKey     string `yaml:"secret-key"`
	WebhookSecret string `yaml:"webhook-secret"`
}

// SMTPConfig holds delivery channel settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"` // Sender address for outbound mail.
}

// FulfillmentConfig bounds rendering and delivery work.
type FulfillmentConfig struct {
	PublicBaseURL      string `yaml:"public-base-url"`      // Base for voucher verification URLs.
	SendTimeoutSeconds int    `yaml:"send-timeout-seconds"` // Per-send timeout covering render and transmit.
}

// ConsistencyConfig bounds the repair scan.
type ConsistencyConfig struct {
	ScanWindow           int `yaml:"scan-window"`            // Recent vouchers examined per sweep.
	SweepIntervalMinutes int `yaml:"sweep-interval-minutes"` // Background sweep cadence; 0 disables.
}

// RedisConfig holds optional coordination settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // Empty disables Redis-backed coordination.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // logrus level name; default info.
	File  string `yaml:"file"`  // Rotating log file path; empty logs to stderr.
}

// Config is the root configuration document.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Stripe      StripeConfig      `yaml:"stripe"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Fulfillment FulfillmentConfig `yaml:"fulfillment"`
	Consistency ConsistencyConfig `yaml:"consistency"`
	Redis       RedisConfig       `yaml:"redis"`
	Log         LogConfig         `yaml:"log"`
}

// Defaults applied when the file omits a value.
const (
	defaultAddr               = ":8318"
	defaultJWTExpiryHours     = 24
	defaultSendTimeoutSeconds = 30
	defaultScanWindow         = 50
)

// ResolveConfigPath expands a config path, falling back to config.yaml.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "config.yaml"
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return trimmed
	}
	return abs
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	cfg := &Config{}
	if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = defaultAddr
	}
	if c.JWT.ExpiryHours <= 0 {
		c.JWT.ExpiryHours = defaultJWTExpiryHours
	}
	if c.Fulfillment.SendTimeoutSeconds <= 0 {
		c.Fulfillment.SendTimeoutSeconds = defaultSendTimeoutSeconds
	}
	if c.Consistency.ScanWindow <= 0 {
		c.Consistency.ScanWindow = defaultScanWindow
	}
	if strings.TrimSpace(c.Fulfillment.PublicBaseURL) == "" {
		c.Fulfillment.PublicBaseURL = "http://localhost:3000"
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	return nil
}

// SendTimeout returns the per-send timeout as a duration.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Fulfillment.SendTimeoutSeconds) * time.Second
}

// JWTExpiry returns the admin token lifetime as a duration.
func (c *Config) JWTExpiry() time.Duration {
	return c.JWT.Expiry()
}

// Expiry returns the admin token lifetime as a duration.
func (c JWTConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

// SweepInterval returns the background sweep cadence; zero disables it.
func (c *Config) SweepInterval() time.Duration {
	if c.Consistency.SweepIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Consistency.SweepIntervalMinutes) * time.Minute
}
