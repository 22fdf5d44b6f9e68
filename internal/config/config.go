package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Primary       Primary             `koanf:"primary" validate:"required"`
	Server        ServerConfig        `koanf:"server" validate:"required"`
	Jira          JiraConfig          `koanf:"jira" validate:"required"`
	Admin         AdminConfig         `koanf:"admin"`
	Logs          LogsConfig          `koanf:"logs" validate:"required"`
	Database      DatabaseConfig      `koanf:"database"`
	Storage       StorageConfig       `koanf:"storage"`
	Observability ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=development production test"`
}

type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required,min=1"`
	BodyLimit          string   `koanf:"body_limit" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// JiraConfig is the webhook validation surface. It is read once at startup.
type JiraConfig struct {
	WebhookSecret     string   `koanf:"webhook_secret"`
	ValidateSignature bool     `koanf:"validate_signature"`
	AllowedIPs        []string `koanf:"allowed_ips" validate:"dive,ip"`
	RequireUserAgent  bool     `koanf:"require_user_agent"`
	UserAgentToken    string   `koanf:"user_agent_token" validate:"required"`
	SignatureHeader   string   `koanf:"signature_header" validate:"required"`
	SignatureScheme   string   `koanf:"signature_scheme" validate:"required"`
}

type AdminConfig struct {
	APIKey string `koanf:"api_key"`
}

type LogsConfig struct {
	Dir         string `koanf:"dir" validate:"required"`
	Level       string `koanf:"level" validate:"required,oneof=trace debug info warn error"`
	Format      string `koanf:"format" validate:"required,oneof=json console"`
	AuditPrefix string `koanf:"audit_prefix" validate:"required"`
}

// DatabaseConfig enables the optional audit index. Empty URL disables it.
type DatabaseConfig struct {
	URL          string `koanf:"url"`
	MaxConns     int32  `koanf:"max_conns" validate:"min=0"`
	RunMigration bool   `koanf:"run_migrations"`
}

func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

type StorageConfig struct {
	O3 O3Config `koanf:"o3"`
}

// O3Config points at an S3-compatible bucket used to archive audit records.
type O3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	KeyPrefix string `koanf:"key_prefix"`
}

func (o O3Config) Enabled() bool { return o.Endpoint != "" && o.Bucket != "" }

// ValidationConfig is the read-only credential view handed to the webhook authenticator.
type ValidationConfig struct {
	Secret           []byte
	EnforceSignature bool
	AllowedIPs       map[string]struct{}
	RequireUserAgent bool
	UserAgentToken   string
	SignatureHeader  string
	SignatureScheme  string
}

// Validation builds the credential view. A nil Secret means no secret is configured.
func (c *Config) Validation() ValidationConfig {
	v := ValidationConfig{
		EnforceSignature: c.Jira.ValidateSignature,
		AllowedIPs:       make(map[string]struct{}, len(c.Jira.AllowedIPs)),
		RequireUserAgent: c.Jira.RequireUserAgent,
		UserAgentToken:   c.Jira.UserAgentToken,
		SignatureHeader:  c.Jira.SignatureHeader,
		SignatureScheme:  c.Jira.SignatureScheme,
	}
	if c.Jira.WebhookSecret != "" {
		v.Secret = []byte(c.Jira.WebhookSecret)
	}
	for _, ip := range c.Jira.AllowedIPs {
		v.AllowedIPs[ip] = struct{}{}
	}
	return v
}

// Strict reports whether checks that only warn in development must reject.
func (c *Config) Strict() bool {
	return c.Primary.Env == EnvProduction
}

func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return time.Duration(s.ReadTimeout) * time.Second,
		time.Duration(s.WriteTimeout) * time.Second,
		time.Duration(s.IdleTimeout) * time.Second
}

func Default() *Config {
	return &Config{
		Primary: Primary{Env: EnvDevelopment},
		Server: ServerConfig{
			Port:               "3000",
			ReadTimeout:        15,
			WriteTimeout:       15,
			IdleTimeout:        60,
			BodyLimit:          "10M",
			CORSAllowedOrigins: []string{"*"},
		},
		Jira: JiraConfig{
			ValidateSignature: true,
			AllowedIPs:        []string{},
			RequireUserAgent:  true,
			UserAgentToken:    "Atlassian",
			SignatureHeader:   "X-Hub-Signature",
			SignatureScheme:   "sha256=",
		},
		Logs: LogsConfig{
			Dir:         "logs",
			Level:       "info",
			Format:      "json",
			AuditPrefix: "webhook",
		},
		Database: DatabaseConfig{
			MaxConns:     4,
			RunMigration: true,
		},
		Storage: StorageConfig{
			O3: O3Config{Region: "us-east-1", KeyPrefix: "webhooks"},
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// LoadConfig loads defaults, an optional .env file and then environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(env.Provider("", ".", envKey))
}

func load(p koanf.Provider) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(p, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitLists(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.Observability.ServiceName = "twin"
	cfg.Observability.Environment = cfg.Primary.Env
	if err := cfg.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}
	return cfg, nil
}

// legacyEnv maps the variable names of existing deployments onto config paths.
var legacyEnv = map[string]string{
	"node_env":                "primary.env",
	"app_env":                 "primary.env",
	"port":                    "server.port",
	"jira_webhook_secret":     "jira.webhook_secret",
	"jira_validate_signature": "jira.validate_signature",
	"jira_allowed_ips":        "jira.allowed_ips",
	"jira_require_user_agent": "jira.require_user_agent",
	"admin_api_key":           "admin.api_key",
	"log_level":               "logs.level",
	"log_format":              "logs.format",
	"logs_dir":                "logs.dir",
	"database_url":            "database.url",
	"new_relic_license_key":   "observability.new_relic.license_key",
	"o3_endpoint":             "storage.o3.endpoint",
	"o3_region":               "storage.o3.region",
	"o3_bucket":               "storage.o3.bucket",
	"o3_access_key":           "storage.o3.access_key",
	"o3_secret_key":           "storage.o3.secret_key",
}

// envKey turns TWIN_JIRA__ALLOWED_IPS into jira.allowed_ips and resolves legacy names.
// Anything else is ignored.
func envKey(s string) string {
	key := strings.ToLower(s)
	if rest, ok := strings.CutPrefix(key, "twin_"); ok {
		return strings.ReplaceAll(rest, "__", ".")
	}
	return legacyEnv[key]
}

var listPaths = []string{
	"jira.allowed_ips",
	"server.cors_allowed_origins",
}

func splitLists(k *koanf.Koanf) error {
	for _, path := range listPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		out := []string{}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
