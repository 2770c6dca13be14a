// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the form mail endpoint.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shineum/formmail-lite/internal/address"
	"github.com/shineum/formmail-lite/internal/form"
)

// defaultMaxUploadSize is 25 MB in bytes.
const defaultMaxUploadSize = 26214400

// defaultWrapThreshold is the label/value length above which the message
// table switches to the two-row layout.
const defaultWrapThreshold = 60

// Config holds the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	TLS        TLSConfig        `yaml:"tls"`
	Site       SiteConfig       `yaml:"site"`
	Security   SecurityConfig   `yaml:"security"`
	Recipients RecipientsConfig `yaml:"recipients"`
	Mail       MailConfig       `yaml:"mail"`
	Provider   string           `yaml:"provider"`
	SES        SESConfig        `yaml:"ses"`
	Graph      GraphConfig      `yaml:"graph"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Listen        string   `yaml:"listen"`
	MaxUploadSize int64    `yaml:"max_upload_size"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

// TLSConfig holds HTTPS settings. When enabled without certificate files a
// self-signed certificate is generated.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SiteConfig holds the strings that identify the site in outgoing mail.
type SiteConfig struct {
	Name            string `yaml:"name"`
	Banner          string `yaml:"banner"`
	MessageIDDomain string `yaml:"message_id_domain"`
}

// SecurityConfig holds requester trust settings.
type SecurityConfig struct {
	TrustedAppIDs []string `yaml:"trusted_app_ids"`
	DebugToken    string   `yaml:"debug_token"`
}

// RecipientsConfig holds the recipient allowlist.
type RecipientsConfig struct {
	Allowed []string `yaml:"allowed"`
	Default string   `yaml:"default"`
}

// MailConfig holds message composition settings.
type MailConfig struct {
	From           string   `yaml:"from"`
	DefaultSubject string   `yaml:"default_subject"`
	InternalFields []string `yaml:"internal_fields"`
	WrapThreshold  int      `yaml:"wrap_threshold"`
	SkipEmpty      bool     `yaml:"skip_empty"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// SMTPConfig holds upstream SMTP relay configuration.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Sender      string `yaml:"sender"`
	ImplicitTLS bool   `yaml:"implicit_tls"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
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

	return cfg, nil
}

// Validate reports configuration that cannot serve requests.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case "", "ses", "graph", "smtp", "stdout":
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.Mail.WrapThreshold <= 0 {
		errs = append(errs, fmt.Errorf("mail.wrap_threshold must be positive, got %d", c.Mail.WrapThreshold))
	}
	if c.Mail.From != "" && !address.IsValid(c.Mail.From, true) {
		errs = append(errs, fmt.Errorf("mail.from %q is not a valid address", c.Mail.From))
	}
	if c.Recipients.Default != "" && !address.IsValid(c.Recipients.Default, true) {
		errs = append(errs, fmt.Errorf("recipients.default %q is not a valid address", c.Recipients.Default))
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_size must be positive, got %d", c.Server.MaxUploadSize))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file must be set together"))
	}

	return errors.Join(errs...)
}

// Banner returns the text shown above the field table.
func (c *Config) Banner() string {
	if c.Site.Banner != "" {
		return c.Site.Banner
	}
	if c.Site.Name != "" {
		return "You received a new message sent via the contact form on " + c.Site.Name + "."
	}
	return "You received a new message sent via the contact form."
}

// SESConfigured returns true if the SES region and sender are set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// SMTPConfigured returns true if an SMTP relay host is set.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Server.Listen = ":8080"
	c.Server.MaxUploadSize = defaultMaxUploadSize
	c.Server.CORSOrigins = []string{"*"}
	c.Site.MessageIDDomain = "localhost"
	c.Mail.DefaultSubject = "Contact form"
	c.Mail.InternalFields = append([]string(nil), form.DefaultInternalFields...)
	c.Mail.WrapThreshold = defaultWrapThreshold
	c.Mail.SkipEmpty = true
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("SERVER_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("SERVER_MAX_UPLOAD_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Server.MaxUploadSize = size
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	if v := os.Getenv("TLS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.TLS.Enabled = enabled
		}
	}
	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}

	if v := os.Getenv("SITE_NAME"); v != "" {
		c.Site.Name = v
	}
	if v := os.Getenv("SITE_BANNER"); v != "" {
		c.Site.Banner = v
	}
	if v := os.Getenv("SITE_MESSAGE_ID_DOMAIN"); v != "" {
		c.Site.MessageIDDomain = v
	}

	if v := os.Getenv("TRUSTED_APP_IDS"); v != "" {
		c.Security.TrustedAppIDs = splitList(v)
	}
	if v := os.Getenv("DEBUG_TOKEN"); v != "" {
		c.Security.DebugToken = v
	}

	if v := os.Getenv("ALLOWED_RECIPIENTS"); v != "" {
		c.Recipients.Allowed = splitList(v)
	}
	if v := os.Getenv("DEFAULT_RECIPIENT"); v != "" {
		c.Recipients.Default = v
	}

	if v := os.Getenv("MAIL_FROM"); v != "" {
		c.Mail.From = v
	}
	if v := os.Getenv("MAIL_DEFAULT_SUBJECT"); v != "" {
		c.Mail.DefaultSubject = v
	}
	if v := os.Getenv("MAIL_INTERNAL_FIELDS"); v != "" {
		c.Mail.InternalFields = splitList(v)
	}
	if v := os.Getenv("MAIL_WRAP_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mail.WrapThreshold = n
		}
	}
	if v := os.Getenv("MAIL_SKIP_EMPTY"); v != "" {
		if skip, err := strconv.ParseBool(v); err == nil {
			c.Mail.SkipEmpty = skip
		}
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
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
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
	if v := os.Getenv("GRAPH_SENDER"); v != "" {
		c.Graph.Sender = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_SENDER"); v != "" {
		c.SMTP.Sender = v
	}
	if v := os.Getenv("SMTP_IMPLICIT_TLS"); v != "" {
		if implicit, err := strconv.ParseBool(v); err == nil {
			c.SMTP.ImplicitTLS = implicit
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// splitList splits a comma separated env value, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
