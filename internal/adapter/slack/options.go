// Package slack adapts Slack realtime events into robot messages and robot
// send/reply/topic calls into Slack Web API requests.
package slack

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultAPIPageSize          = 100
	defaultConversationCacheTTL = 5 * time.Minute
)

// Token validation errors. The messages are the ones operators already know from the logs.
var (
	ErrNoToken      = errors.New("No token provided to Hubot")
	ErrInvalidToken = errors.New("Invalid token provided, please follow the upgrade instructions")
	ErrNoAppToken   = errors.New("socket mode requires an app-level token (xapp-)")
	ErrNoRoom       = errors.New("envelope has no room")
)

// Options configures the adapter.
type Options struct {
	Token                string
	AppToken             string
	DisableUserSync      bool
	APIPageSize          int
	InstalledTeamOnly    bool
	Transport            TransportOptions
	ConversationCacheTTL time.Duration
	UserSyncSchedule     string
}

// TransportOptions are the raw transport settings read from HUBOT_SLACK_RTM_CLIENT_OPTS.
type TransportOptions struct {
	Debug         bool  `json:"debug"`
	AutoReconnect *bool `json:"autoReconnect"`
}

// Reconnects reports whether a closed connection is expected to come back on its own.
func (o TransportOptions) Reconnects() bool {
	return o.AutoReconnect == nil || *o.AutoReconnect
}

// ParseTransportOptions decodes the JSON transport options. Malformed input is
// logged and the defaults are used.
func ParseTransportOptions(log *slog.Logger, raw string) TransportOptions {
	var opts TransportOptions
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return opts
	}
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		if log != nil {
			log.Error("invalid transport options", slog.String("value", raw), slog.Any("error", err))
		}
		return TransportOptions{}
	}
	return opts
}

// Validate checks the bot token and, for socket mode, the app-level token.
func (o Options) Validate() error {
	if o.Token == "" {
		return ErrNoToken
	}
	if !strings.HasPrefix(o.Token, "xoxb-") && !strings.HasPrefix(o.Token, "xoxp-") {
		return ErrInvalidToken
	}
	if !strings.HasPrefix(o.AppToken, "xapp-") {
		return ErrNoAppToken
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.APIPageSize <= 0 {
		o.APIPageSize = defaultAPIPageSize
	}
	if o.ConversationCacheTTL <= 0 {
		o.ConversationCacheTTL = defaultConversationCacheTTL
	}
	return o
}
