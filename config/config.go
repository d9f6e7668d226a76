// Package config loads the atelier configuration: a YAML file, defaults for
// everything it leaves out, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ileri/atelier/auth"
)

// Config holds the full atelier configuration.
type Config struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`
	// StoreDB holds documents, collections and the legacy key-value store.
	StoreDB string `yaml:"store_db"`
	// ObsDB holds the business event log, the audit log and the shield
	// tables.
	ObsDB       string `yaml:"obs_db"`
	SnapshotDir string `yaml:"snapshot_dir"`

	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Sync      SyncConfig      `yaml:"sync"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Retention RetentionConfig `yaml:"retention"`
}

// DatabaseConfig tunes both SQLite databases.
type DatabaseConfig struct {
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	Synchronous   string `yaml:"synchronous"` // OFF | NORMAL | FULL | EXTRA
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// AuthConfig configures the single admin account and its tokens.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	AdminUser     string        `yaml:"admin_user"`
	AdminPassHash string        `yaml:"admin_password_hash"` // bcrypt
	TokenTTL      time.Duration `yaml:"token_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
}

// SyncConfig tunes the live feeds.
type SyncConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

// AnalysisConfig configures the makeup consultant.
type AnalysisConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"api_key"`
	MinInterval   time.Duration `yaml:"min_interval"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxImageBytes int           `yaml:"max_image_bytes"`
	// Consultations bounds the visitors holding a photo at once;
	// ConsultationTTL drops idle ones.
	Consultations   int           `yaml:"max_consultations"`
	ConsultationTTL time.Duration `yaml:"consultation_ttl"`
}

// RetentionConfig bounds the observability tables, in days.
type RetentionConfig struct {
	HTTPLogsDays  int `yaml:"http_logs_days"`
	EventLogsDays int `yaml:"event_logs_days"`
	AuditLogsDays int `yaml:"audit_logs_days"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path (skipped when empty), fills defaults, applies the
// environment and validates the result.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnv(os.LookupEnv)
	c.applyDefaults()
	return c, c.Validate()
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.StoreDB == "" {
		c.StoreDB = filepath.Join(c.DataDir, "store.db")
	}
	if c.ObsDB == "" {
		c.ObsDB = filepath.Join(c.DataDir, "observability.db")
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = filepath.Join(c.DataDir, "snapshot")
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = 10_000
	}
	if c.Database.Synchronous == "" {
		c.Database.Synchronous = "NORMAL"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Auth.AdminUser == "" {
		c.Auth.AdminUser = "admin"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Sync.RetryInterval == 0 {
		c.Sync.RetryInterval = 5 * time.Second
	}
	if c.Sync.PollInterval == 0 {
		c.Sync.PollInterval = 500 * time.Millisecond
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = "gpt-4o-mini"
	}
	if c.Analysis.MinInterval == 0 {
		c.Analysis.MinInterval = 10 * time.Second
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = 30 * time.Second
	}
	if c.Analysis.MaxImageBytes == 0 {
		c.Analysis.MaxImageBytes = 8 << 20
	}
	if c.Analysis.Consultations == 0 {
		c.Analysis.Consultations = 512
	}
	if c.Analysis.ConsultationTTL == 0 {
		c.Analysis.ConsultationTTL = 30 * time.Minute
	}
	if c.Retention.HTTPLogsDays == 0 {
		c.Retention.HTTPLogsDays = 30
	}
	if c.Retention.EventLogsDays == 0 {
		c.Retention.EventLogsDays = 365
	}
	if c.Retention.AuditLogsDays == 0 {
		c.Retention.AuditLogsDays = 365
	}
}

// applyEnv lets the environment win over the file. Secrets are usually only
// given this way.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("ATELIER_LISTEN", &c.Listen)
	str("ATELIER_DATA_DIR", &c.DataDir)
	str("ATELIER_STORE_DB", &c.StoreDB)
	str("ATELIER_OBS_DB", &c.ObsDB)
	str("ATELIER_SNAPSHOT_DIR", &c.SnapshotDir)
	str("ATELIER_LOG_LEVEL", &c.Log.Level)
	str("ATELIER_LOG_FORMAT", &c.Log.Format)
	str("ATELIER_JWT_SECRET", &c.Auth.JWTSecret)
	str("ATELIER_ADMIN_USER", &c.Auth.AdminUser)
	str("ATELIER_ADMIN_PASSWORD_HASH", &c.Auth.AdminPassHash)
	dur("ATELIER_TOKEN_TTL", &c.Auth.TokenTTL)
	if v, ok := lookup("ATELIER_SECURE_COOKIE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Auth.SecureCookie = b
		}
	}
	dur("ATELIER_RETRY_INTERVAL", &c.Sync.RetryInterval)
	str("ATELIER_ANALYSIS_BASE_URL", &c.Analysis.BaseURL)
	str("ATELIER_ANALYSIS_MODEL", &c.Analysis.Model)
	str("OPENAI_API_KEY", &c.Analysis.APIKey)
	str("ATELIER_ANALYSIS_API_KEY", &c.Analysis.APIKey)
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	var errs []error
	if err := auth.ValidateSecret([]byte(c.Auth.JWTSecret)); err != nil {
		errs = append(errs, fmt.Errorf("auth.jwt_secret: %w", err))
	}
	if c.Auth.AdminPassHash == "" {
		errs = append(errs, errors.New("auth.admin_password_hash is required"))
	}
	if c.Auth.TokenTTL < time.Minute {
		errs = append(errs, errors.New("auth.token_ttl must be at least 1m"))
	}
	if c.Sync.RetryInterval <= 0 {
		errs = append(errs, errors.New("sync.retry_interval must be > 0"))
	}
	if c.Analysis.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("analysis.max_image_bytes must be > 0"))
	}
	switch strings.ToUpper(c.Database.Synchronous) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		errs = append(errs, fmt.Errorf("database.synchronous: unsupported %q", c.Database.Synchronous))
	}
	if c.Database.BusyTimeoutMS < 0 {
		errs = append(errs, errors.New("database.busy_timeout_ms must be >= 0"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported %q (use json or text)", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
