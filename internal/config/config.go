package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Gmail     GmailConfig     `yaml:"gmail"`
	AI        AIConfig        `yaml:"ai"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string    `yaml:"listen_addr"`
	PublicURL  string    `yaml:"public_url"`
	TLS        TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool       `yaml:"enabled"`
	CertFile string     `yaml:"cert_file"`
	KeyFile  string     `yaml:"key_file"`
	ACME     ACMEConfig `yaml:"acme"`
}

type ACMEConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	Google        GoogleConfig  `yaml:"google"`
}

// GoogleConfig configures the Google sign-in flow. The gmail.send scope is
// always requested on top of the identity scopes so that the stored refresh
// token can be used to send mail on the user's behalf.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type GmailConfig struct {
	// Transport selects how outbound mail reaches Gmail: "api" uses the
	// Gmail REST API, "smtp" uses smtp.gmail.com with XOAUTH2.
	Transport string        `yaml:"transport"`
	Timeout   time.Duration `yaml:"timeout"`
}

type AIConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type RateLimitConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Path            string `yaml:"path"`
	MessagesPerHour int    `yaml:"messages_per_hour"`
	MessagesPerDay  int    `yaml:"messages_per_day"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://localhost:8090"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/lazydraft/app.db"
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.Gmail.Transport == "" {
		cfg.Gmail.Transport = "api"
	}
	if cfg.Gmail.Timeout == 0 {
		cfg.Gmail.Timeout = 30 * time.Second
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 15 * time.Second
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 25
	}
	if cfg.RateLimit.Path == "" {
		cfg.RateLimit.Path = "/var/lib/lazydraft/ratelimit.db"
	}
	if cfg.RateLimit.MessagesPerHour == 0 {
		cfg.RateLimit.MessagesPerHour = 100
	}
	if cfg.RateLimit.MessagesPerDay == 0 {
		cfg.RateLimit.MessagesPerDay = 500
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}
	if len(cfg.Auth.SessionSecret) < 32 {
		return fmt.Errorf("auth.session_secret must be at least 32 characters")
	}
	if cfg.Auth.Google.ClientID == "" {
		return fmt.Errorf("auth.google.client_id is required")
	}
	if cfg.Auth.Google.ClientSecret == "" {
		return fmt.Errorf("auth.google.client_secret is required")
	}
	if cfg.Auth.Google.RedirectURL == "" {
		return fmt.Errorf("auth.google.redirect_url is required")
	}
	if cfg.Gmail.Transport != "api" && cfg.Gmail.Transport != "smtp" {
		return fmt.Errorf("gmail.transport must be \"api\" or \"smtp\", got %q", cfg.Gmail.Transport)
	}
	if cfg.Server.TLS.Enabled && !cfg.Server.TLS.ACME.Enabled {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.cert_file and server.tls.key_file are required when TLS is enabled without ACME")
		}
	}
	if cfg.Server.TLS.ACME.Enabled && len(cfg.Server.TLS.ACME.Domains) == 0 {
		return fmt.Errorf("server.tls.acme.domains is required when ACME is enabled")
	}
	return nil
}
