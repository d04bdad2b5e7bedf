// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the email API.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultMaxAttachmentSize is 10 MB in bytes, per decoded attachment.
const defaultMaxAttachmentSize = 10485760

// defaultMaxRequestSize is 25 MB in bytes, for the whole request body.
const defaultMaxRequestSize = 26214400

// Config holds the complete application configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	SES     SESConfig     `yaml:"ses"`
	Graph   GraphConfig   `yaml:"graph"`
	TLS     TLSConfig     `yaml:"tls"`
	Logging LoggingConfig `yaml:"logging"`
	Limits  LimitsConfig  `yaml:"limits"`
}

// BackendConfig selects the delivery backend and the From address.
type BackendConfig struct {
	Provider string `yaml:"provider"`
	Sender   string `yaml:"sender"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Listen       string   `yaml:"listen"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// SMTPConfig holds the upstream SMTP relay configuration.
type SMTPConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	UseTLS   bool   `yaml:"use_tls"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// TLSConfig holds TLS settings for the HTTP listener.
type TLSConfig struct {
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	SelfSigned bool   `yaml:"self_signed"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LimitsConfig holds request size limits.
type LimitsConfig struct {
	MaxAttachmentSize int64 `yaml:"max_attachment_size"`
	MaxRequestSize    int64 `yaml:"max_request_size"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	cfg.applyFallbacks()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()
	cfg.applyFallbacks()

	return cfg, nil
}

// Validate checks that the selected provider has the settings it needs.
func (c *Config) Validate() error {
	switch c.Backend.Provider {
	case "smtp":
		if c.SMTP.Server == "" {
			return fmt.Errorf("SMTP_SERVER is required for the smtp provider")
		}
		if c.SMTP.Username == "" {
			return fmt.Errorf("SMTP_USERNAME is required for the smtp provider")
		}
		if c.SMTP.Password == "" {
			return fmt.Errorf("SMTP_PASSWORD is required for the smtp provider")
		}
	case "ses":
		if c.SES.Region == "" {
			return fmt.Errorf("SES_REGION is required for the ses provider")
		}
	case "msgraph":
		if !c.GraphConfigured() {
			return fmt.Errorf("GRAPH_TENANT_ID, GRAPH_CLIENT_ID, and GRAPH_CLIENT_SECRET are required for the msgraph provider")
		}
	case "stdout":
	default:
		return fmt.Errorf("unknown provider %q", c.Backend.Provider)
	}

	if c.Backend.Sender == "" {
		return fmt.Errorf("SENDER_EMAIL is required")
	}

	return nil
}

// GraphConfigured returns true if all three Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.HTTP.Listen = ":8000"
	c.HTTP.AllowOrigins = []string{"*"}
	c.Backend.Provider = "smtp"
	c.SMTP.Port = 587
	c.SMTP.UseTLS = true
	c.Logging.Level = "info"
	c.Limits.MaxAttachmentSize = defaultMaxAttachmentSize
	c.Limits.MaxRequestSize = defaultMaxRequestSize
}

// applyFallbacks derives values left unset after defaults, file, and env.
// The SMTP username doubles as the sender address when none is given.
func (c *Config) applyFallbacks() {
	if c.Backend.Sender == "" && c.Backend.Provider == "smtp" {
		c.Backend.Sender = c.SMTP.Username
	}
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("HTTP_LISTEN"); v != "" {
		c.HTTP.Listen = v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.HTTP.AllowOrigins = splitAndTrim(v)
	}

	if v := os.Getenv("EMAIL_PROVIDER"); v != "" {
		c.Backend.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		c.Backend.Sender = v
	}

	if v := os.Getenv("SMTP_SERVER"); v != "" {
		c.SMTP.Server = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USE_TLS"); v != "" {
		c.SMTP.UseTLS = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}

	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}
	if v := os.Getenv("TLS_SELF_SIGNED"); v != "" {
		c.TLS.SelfSigned = strings.ToLower(v) == "true"
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv("MAX_ATTACHMENT_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Limits.MaxAttachmentSize = size
		}
	}
	if v := os.Getenv("MAX_REQUEST_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Limits.MaxRequestSize = size
		}
	}
}

// splitAndTrim splits a comma-separated list and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
