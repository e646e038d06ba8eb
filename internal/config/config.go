// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Hub     HubConfig     `mapstructure:"hub"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Store   StoreConfig   `mapstructure:"store"`
	Verify  VerifyConfig  `mapstructure:"verify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlConfig governs run defaults for the discovery pipeline.
type CrawlConfig struct {
	EmailLimit        int    `mapstructure:"email_limit"`
	ListingPages      int    `mapstructure:"listing_pages"`
	ModelPagesPerUser int    `mapstructure:"model_pages_per_user"`
	MaxUsernameLen    int    `mapstructure:"max_username_len"`
	PoliteDelayMs     int    `mapstructure:"polite_delay_ms"`
	UserAgent         string `mapstructure:"user_agent"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HubConfig points at the model-hosting site whose directory is crawled.
type HubConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// GitHubConfig points at the source-hosting API used for commit harvesting.
type GitHubConfig struct {
	APIBase      string `mapstructure:"api_base"`
	Token        string `mapstructure:"token"`
	MaxRepos     int    `mapstructure:"max_repos"`
	CommitsPerPg int    `mapstructure:"commits_per_page"`
}

// StoreConfig sets paths for the persisted email log and run snapshot.
type StoreConfig struct {
	Path         string `mapstructure:"path"`
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// VerifyConfig controls the address verification engine.
type VerifyConfig struct {
	MXTimeoutSeconds   int    `mapstructure:"mx_timeout_seconds"`
	SMTPTimeoutSeconds int    `mapstructure:"smtp_timeout_seconds"`
	HeloDomain         string `mapstructure:"helo_domain"`
	ProbeFrom          string `mapstructure:"probe_from"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MAILHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.email_limit", 200)
	v.SetDefault("crawl.listing_pages", 40)
	v.SetDefault("crawl.model_pages_per_user", 3)
	v.SetDefault("crawl.max_username_len", 40)
	v.SetDefault("crawl.polite_delay_ms", 100)
	v.SetDefault("crawl.user_agent", "mailharvest-bot/0.1")
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("hub.base_url", "https://huggingface.co")
	v.SetDefault("github.api_base", "https://api.github.com")
	v.SetDefault("github.max_repos", 4)
	v.SetDefault("github.commits_per_page", 100)
	v.SetDefault("store.path", "emails.jsonl")
	v.SetDefault("store.snapshot_path", "kpi_latest.json")
	v.SetDefault("verify.mx_timeout_seconds", 3)
	v.SetDefault("verify.smtp_timeout_seconds", 6)
	v.SetDefault("verify.helo_domain", "example.com")
	v.SetDefault("verify.probe_from", "validator@example.com")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.EmailLimit <= 0 {
		return fmt.Errorf("crawl.email_limit must be > 0")
	}
	if c.Crawl.ListingPages <= 0 {
		return fmt.Errorf("crawl.listing_pages must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Hub.BaseURL == "" {
		return fmt.Errorf("hub.base_url must be set")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must be set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PoliteDelay returns the pause inserted between paginated fetches.
func (c Config) PoliteDelay() time.Duration {
	return time.Duration(c.Crawl.PoliteDelayMs) * time.Millisecond
}
