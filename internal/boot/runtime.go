// Package boot derives typed runtime settings from the loaded configuration.
package boot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lveraszto/hubot-slack/internal/config"
)

// RuntimeConfig holds parsed runtime settings (durations, addresses).
// HTTP_ADDR overrides the configured listen address.
type RuntimeConfig struct {
	ServerAddr           string
	JWTSecret            string
	TokenTTL             time.Duration
	ConversationCacheTTL time.Duration
	APIPageSize          int
	BrainBackend         string
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	tokenTTL, err := parseDuration(cfg.Server.TokenTTL, config.DefaultTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid server token ttl: %w", err)
	}
	cacheTTL, err := parseDuration(cfg.Slack.ConversationCacheTTL, config.DefaultConversationCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation cache ttl: %w", err)
	}
	if cacheTTL <= 0 {
		return nil, fmt.Errorf("conversation cache ttl must be positive, got %s", cacheTTL)
	}

	pageSize := cfg.Slack.APIPageSize
	if pageSize <= 0 {
		pageSize = config.DefaultAPIPageSize
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Brain.Backend))
	if backend == "" {
		backend = config.DefaultBrainBackend
	}

	ret := &RuntimeConfig{
		ServerAddr:           cfg.Server.Addr,
		JWTSecret:            strings.TrimSpace(cfg.Server.JWTSecret),
		TokenTTL:             tokenTTL,
		ConversationCacheTTL: cacheTTL,
		APIPageSize:          pageSize,
		BrainBackend:         backend,
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	return ret, nil
}

func parseDuration(value, fallback string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	return time.ParseDuration(value)
}
