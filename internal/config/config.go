// Package config builds the typed application configuration from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/rules"
	"github.com/Veraticus/unclutter/internal/service"
)

// Token store backends.
const (
	BackendSQLite  = "sqlite"
	BackendRedis   = "redis"
	BackendKeyring = "keyring"
)

// Config is the complete runtime configuration.
type Config struct {
	Google  GoogleConfig
	Tokens  TokenConfig
	Rules   RulesConfig
	IMAP    IMAPConfig
	Logging LoggingConfig
	Server  ServerConfig
	Fetch   FetchConfig
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr          string
	FrontendURL   string
	SessionTTL    time.Duration
	PurgeInterval time.Duration
}

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// TokenConfig selects and configures the credential store.
type TokenConfig struct {
	Backend    string
	SQLitePath string
	Redis      RedisConfig
	Keyring    KeyringConfig
}

// RedisConfig configures the Redis token store.
type RedisConfig struct {
	Addr     string
	Password string
	Prefix   string
	DB       int
}

// KeyringConfig configures the OS keyring token store.
type KeyringConfig struct {
	Service string
	FileDir string
}

// RulesConfig picks the classification rules.
type RulesConfig struct {
	Preset string
	// File, when set, replaces the preset.
	File string
}

// FetchConfig bounds provider fetches.
type FetchConfig struct {
	MaxResults  int
	Concurrency int
}

// IMAPConfig configures the IMAP message source.
type IMAPConfig struct {
	Server   string
	Email    string
	Password string
	Folder   string
	Port     int
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.addr", ":5001")
	v.SetDefault("server.frontend_url", "http://localhost:5174")
	v.SetDefault("server.session_ttl", "168h")
	v.SetDefault("server.purge_interval", "1h")

	v.SetDefault("google.redirect_url", "http://localhost:5001/api/auth/google/callback")

	v.SetDefault("tokens.backend", BackendSQLite)
	v.SetDefault("tokens.sqlite_path", "$HOME/.local/share/unclutter/unclutter.db")
	v.SetDefault("tokens.redis.addr", "localhost:6379")
	v.SetDefault("tokens.redis.prefix", "unclutter:token:")
	v.SetDefault("tokens.redis.db", 0)
	v.SetDefault("tokens.keyring.service", "unclutter")
	v.SetDefault("tokens.keyring.file_dir", "~/.config/unclutter/keyring")

	v.SetDefault("rules.preset", rules.PresetDefault)

	v.SetDefault("fetch.max_results", service.MaxListResults)
	v.SetDefault("fetch.concurrency", 10)

	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.folder", "INBOX")
}

// Load builds a Config from v. It follows this precedence:
// 1. Viper configuration (config file or UNCLUTTER_ env vars)
// 2. Direct environment variables (GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, REDIRECT_URI, FRONTEND_URL)
// 3. Defaults registered by SetDefaults
func Load(v *viper.Viper) (*Config, error) {
	// IsSet also sees defaults, so record explicit settings first.
	redirectSet := v.IsSet("google.redirect_url")
	frontendSet := v.IsSet("server.frontend_url")

	SetDefaults(v)

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Server: ServerConfig{
			Addr:          v.GetString("server.addr"),
			FrontendURL:   v.GetString("server.frontend_url"),
			SessionTTL:    v.GetDuration("server.session_ttl"),
			PurgeInterval: v.GetDuration("server.purge_interval"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("google.client_id"),
			ClientSecret: v.GetString("google.client_secret"),
			RedirectURL:  v.GetString("google.redirect_url"),
		},
		Tokens: TokenConfig{
			Backend:    v.GetString("tokens.backend"),
			SQLitePath: ExpandPath(v.GetString("tokens.sqlite_path")),
			Redis: RedisConfig{
				Addr:     v.GetString("tokens.redis.addr"),
				Password: v.GetString("tokens.redis.password"),
				DB:       v.GetInt("tokens.redis.db"),
				Prefix:   v.GetString("tokens.redis.prefix"),
			},
			Keyring: KeyringConfig{
				Service: v.GetString("tokens.keyring.service"),
				FileDir: ExpandPath(v.GetString("tokens.keyring.file_dir")),
			},
		},
		Rules: RulesConfig{
			Preset: v.GetString("rules.preset"),
			File:   ExpandPath(v.GetString("rules.file")),
		},
		Fetch: FetchConfig{
			MaxResults:  v.GetInt("fetch.max_results"),
			Concurrency: v.GetInt("fetch.concurrency"),
		},
		IMAP: IMAPConfig{
			Server:   v.GetString("imap.server"),
			Port:     v.GetInt("imap.port"),
			Email:    v.GetString("imap.email"),
			Password: v.GetString("imap.password"),
			Folder:   v.GetString("imap.folder"),
		},
	}

	// Unprefixed names accepted for existing .env files.
	if cfg.Google.ClientID == "" {
		cfg.Google.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if cfg.Google.ClientSecret == "" {
		cfg.Google.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if env := os.Getenv("REDIRECT_URI"); env != "" && !redirectSet {
		cfg.Google.RedirectURL = env
	}
	if env := os.Getenv("FRONTEND_URL"); env != "" && !frontendSet {
		cfg.Server.FrontendURL = env
	}

	cfg.Fetch.MaxResults = service.ListOptions{MaxResults: cfg.Fetch.MaxResults}.Clamp().MaxResults

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Tokens.Backend {
	case BackendSQLite:
		if c.Tokens.SQLitePath == "" {
			return fmt.Errorf("%w: tokens.sqlite_path is required for the sqlite backend", common.ErrInvalidConfig)
		}
	case BackendRedis:
		if c.Tokens.Redis.Addr == "" {
			return fmt.Errorf("%w: tokens.redis.addr is required for the redis backend", common.ErrInvalidConfig)
		}
	case BackendKeyring:
	default:
		return fmt.Errorf("%w: unknown token backend %q", common.ErrInvalidConfig, c.Tokens.Backend)
	}

	if c.Rules.File == "" {
		if _, err := rules.Preset(c.Rules.Preset); err != nil {
			return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
		}
	}

	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("%w: server.session_ttl must be positive", common.ErrInvalidConfig)
	}
	if c.Server.PurgeInterval <= 0 {
		return fmt.Errorf("%w: server.purge_interval must be positive", common.ErrInvalidConfig)
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("%w: fetch.concurrency must be positive", common.ErrInvalidConfig)
	}

	return nil
}

// RequireGoogle reports a missing OAuth client registration.
func (c *Config) RequireGoogle() error {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return fmt.Errorf("%w: google.client_id and google.client_secret (or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET)", common.ErrMissingConfig)
	}
	return nil
}

// RequireIMAP reports a missing IMAP account.
func (c *Config) RequireIMAP() error {
	if c.IMAP.Server == "" || c.IMAP.Email == "" || c.IMAP.Password == "" {
		return fmt.Errorf("%w: imap.server, imap.email and imap.password", common.ErrMissingConfig)
	}
	return nil
}

// LoadRules returns the rule configuration the settings select.
func (c *Config) LoadRules() (rules.Config, error) {
	return rules.Load(c.Rules.Preset, c.Rules.File)
}

// DefaultConfigDir is where the config file and keyring live.
func DefaultConfigDir() string {
	return filepath.Join(ExpandPath("~"), ".config", "unclutter")
}
