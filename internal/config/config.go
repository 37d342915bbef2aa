// Package config loads and exposes application configuration (TOML file, .env, environment).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath           = "config.toml"
	DefaultDotenvPath           = ".env"
	DefaultHTTPAddr             = ":8080"
	DefaultRobotName            = "hubot"
	DefaultAPIPageSize          = 100
	DefaultConversationCacheTTL = "5m"
	DefaultBrainBackend         = "memory"
	DefaultBrainAutosave        = "@every 5s"
	DefaultRedisURL             = "redis://127.0.0.1:6379/0"
	DefaultRedisPrefix          = "hubot"
	DefaultSQLitePath           = "data/brain.db"
	DefaultPGHost               = "127.0.0.1"
	DefaultPGPort               = 5432
	DefaultPGUser               = "postgres"
	DefaultPGDatabase           = "hubot"
	DefaultPGSSLMode            = "disable"
	DefaultTokenTTL             = "24h"
	DefaultRateLimit            = 20
)

// Config is the root application configuration.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Robot    RobotConfig    `toml:"robot"`
	Slack    SlackConfig    `toml:"slack"`
	Brain    BrainConfig    `toml:"brain"`
	Redis    RedisConfig    `toml:"redis"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level" env:"HUBOT_LOG_LEVEL"`
	Format string `toml:"format" env:"HUBOT_LOG_FORMAT"`
}

// ServerConfig holds the HTTP API listen address, JWT secret and per-IP rate limit.
// An empty JWT secret leaves /api unauthenticated.
type ServerConfig struct {
	Addr      string  `toml:"addr" env:"HTTP_ADDR"`
	JWTSecret string  `toml:"jwt_secret" env:"HUBOT_HTTP_JWT_SECRET"`
	TokenTTL  string  `toml:"token_ttl" env:"HUBOT_HTTP_TOKEN_TTL"`
	RateLimit float64 `toml:"rate_limit" env:"HUBOT_HTTP_RATE_LIMIT"`
}

// RobotConfig holds the robot's name and alias used by respond listeners.
type RobotConfig struct {
	Name           string `toml:"name" env:"HUBOT_NAME"`
	Alias          string `toml:"alias" env:"HUBOT_ALIAS"`
	ReceiveWorkers int    `toml:"receive_workers"`
	ReceiveQueue   int    `toml:"receive_queue"`
}

// SlackConfig holds the adapter options.
type SlackConfig struct {
	Token                string `toml:"token" env:"HUBOT_SLACK_TOKEN"`
	AppToken             string `toml:"app_token" env:"HUBOT_SLACK_APP_TOKEN"`
	DisableUserSync      bool   `toml:"disable_user_sync"`
	APIPageSize          int    `toml:"api_page_size"`
	InstalledTeamOnly    bool   `toml:"installed_team_only"`
	TransportOptions     string `toml:"transport_options" env:"HUBOT_SLACK_RTM_CLIENT_OPTS"`
	ConversationCacheTTL string `toml:"conversation_cache_ttl"`
	UserSyncSchedule     string `toml:"user_sync_schedule" env:"HUBOT_SLACK_USER_SYNC_SCHEDULE"`
}

// BrainConfig selects the brain backend (memory, redis, sqlite, postgres) and autosave schedule.
type BrainConfig struct {
	Backend  string `toml:"backend" env:"HUBOT_BRAIN"`
	Autosave string `toml:"autosave" env:"HUBOT_BRAIN_AUTOSAVE"`
}

// RedisConfig holds the redis brain connection URL and key prefix.
type RedisConfig struct {
	URL    string `toml:"url" env:"REDIS_URL"`
	Prefix string `toml:"prefix" env:"HUBOT_REDIS_PREFIX"`
}

// SQLiteConfig holds the sqlite brain database path.
type SQLiteConfig struct {
	Path string `toml:"path" env:"HUBOT_SQLITE_PATH"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host" env:"POSTGRES_HOST"`
	Port     int    `toml:"port" env:"POSTGRES_PORT"`
	User     string `toml:"user" env:"POSTGRES_USER"`
	Password string `toml:"password" env:"POSTGRES_PASSWORD"`
	Database string `toml:"database" env:"POSTGRES_DB"`
	SSLMode  string `toml:"sslmode" env:"POSTGRES_SSLMODE"`
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:      DefaultHTTPAddr,
			TokenTTL:  DefaultTokenTTL,
			RateLimit: DefaultRateLimit,
		},
		Robot: RobotConfig{
			Name:           DefaultRobotName,
			ReceiveWorkers: 4,
			ReceiveQueue:   256,
		},
		Slack: SlackConfig{
			APIPageSize:          DefaultAPIPageSize,
			ConversationCacheTTL: DefaultConversationCacheTTL,
		},
		Brain: BrainConfig{
			Backend:  DefaultBrainBackend,
			Autosave: DefaultBrainAutosave,
		},
		Redis: RedisConfig{
			URL:    DefaultRedisURL,
			Prefix: DefaultRedisPrefix,
		},
		SQLite: SQLiteConfig{
			Path: DefaultSQLitePath,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}
}

// Load builds the configuration in layers: defaults, the TOML file at path
// (missing file is fine), then variables from .env and the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if err := loadDotenv(DefaultDotenvPath); err != nil {
		return cfg, fmt.Errorf("load %s: %w", DefaultDotenvPath, err)
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	applyLegacyEnv(cfg)
	return nil
}

// applyLegacyEnv handles the adapter's historical variables: flags that are
// enabled by presence alone and numbers that fall back to defaults when malformed.
func applyLegacyEnv(cfg *Config) {
	if _, ok := os.LookupEnv("DISABLE_USER_SYNC"); ok {
		cfg.Slack.DisableUserSync = true
	}
	if _, ok := os.LookupEnv("INSTALLED_TEAM_ONLY"); ok {
		cfg.Slack.InstalledTeamOnly = true
	}
	if raw, ok := os.LookupEnv("API_PAGE_SIZE"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			cfg.Slack.APIPageSize = n
		}
	}
	if raw, ok := os.LookupEnv("HUBOT_SLACK_CONVERSATION_CACHE_TTL_MS"); ok {
		if ms, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && ms > 0 {
			cfg.Slack.ConversationCacheTTL = strconv.Itoa(ms) + "ms"
		}
	}
}

func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
