// Package config loads application configuration from a YAML file with
// environment variable overrides. Secrets live in .env locally and in
// real environment variables in deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment names the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// IsProduction reports whether this is a production deployment.
func (e Environment) IsProduction() bool { return e == EnvProduction }

// Config holds all configuration for the application.
type Config struct {
	Environment Environment    `yaml:"environment"` // "production", "staging", "development"
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Auth        AuthConfig     `yaml:"auth"`
	Mail        MailConfig     `yaml:"mail"`
	Dispatch    DispatchConfig `yaml:"dispatch"`
	Domains     DomainsConfig  `yaml:"domains"`
	Storage     StorageConfig  `yaml:"storage"`
}

// IsProduction reports whether the server runs in production mode.
// Certificate issuance is gated on this.
func (c *Config) IsProduction() bool { return c.Environment.IsProduction() }

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GetHost returns the listen host. Containers listen on all interfaces.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings. Redis is optional; when absent the
// dispatch lock falls back to Postgres advisory locks.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	TokenIssuer string `yaml:"token_issuer"`
}

// MailConfig holds transactional mail provider settings.
type MailConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c MailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DispatchConfig tunes the campaign dispatch loop.
type DispatchConfig struct {
	BatchSize       int `yaml:"batch_size"`        // recipients per concurrent batch
	BatchDelayMs    int `yaml:"batch_delay_ms"`    // pause between batches
	MaxReportErrors int `yaml:"max_report_errors"` // per-recipient errors included in response
}

// BatchDelay returns the inter-batch pacing delay.
func (c DispatchConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// DomainsConfig holds domain verification and SSL issuance settings.
type DomainsConfig struct {
	TXTPrefix      string   `yaml:"txt_prefix"`       // DNS label prefixed to the domain, default "_verification"
	CertbotBin     string   `yaml:"certbot_bin"`      // path to the certbot binary
	CertbotArgs    []string `yaml:"certbot_args"`     // extra flags, e.g. --nginx --non-interactive
	ReloadCommand  []string `yaml:"reload_command"`   // argv to reload the edge proxy
	LookupTimeoutS int      `yaml:"lookup_timeout_s"` // per-lookup DNS timeout
}

// LookupTimeout returns the DNS lookup timeout.
func (c DomainsConfig) LookupTimeout() time.Duration {
	if c.LookupTimeoutS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.LookupTimeoutS) * time.Second
}

// StorageConfig holds S3 document storage settings.
type StorageConfig struct {
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AWSProfile string `yaml:"aws_profile"`
	Enabled    bool   `yaml:"enabled"`
}

// Load reads and parses the config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Mail.TimeoutSeconds == 0 {
		cfg.Mail.TimeoutSeconds = 30
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 50
	}
	if cfg.Dispatch.BatchDelayMs == 0 {
		cfg.Dispatch.BatchDelayMs = 1000
	}
	if cfg.Dispatch.MaxReportErrors == 0 {
		cfg.Dispatch.MaxReportErrors = 10
	}
	if cfg.Domains.TXTPrefix == "" {
		cfg.Domains.TXTPrefix = "_verification"
	}
	if cfg.Domains.CertbotBin == "" {
		cfg.Domains.CertbotBin = "certbot"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file is loaded first if present (no error when missing).
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("MAIL_API_KEY"); v != "" {
		cfg.Mail.APIKey = v
	}
	if v := os.Getenv("MAIL_BASE_URL"); v != "" {
		cfg.Mail.BaseURL = v
	}
	if v := os.Getenv("MAIL_FROM_EMAIL"); v != "" {
		cfg.Mail.FromEmail = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
		cfg.Storage.Enabled = true
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}
