package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultAPIPageSize, cfg.Slack.APIPageSize)
	assert.Equal(t, DefaultConversationCacheTTL, cfg.Slack.ConversationCacheTTL)
	assert.Equal(t, DefaultBrainBackend, cfg.Brain.Backend)
	assert.False(t, cfg.Slack.DisableUserSync)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
[robot]
name = "norbert"
alias = "!"

[slack]
token = "xoxb-from-file"
api_page_size = 50

[brain]
backend = "sqlite"
`)
	t.Setenv("HUBOT_SLACK_TOKEN", "xoxb-from-env")
	t.Setenv("HUBOT_SLACK_APP_TOKEN", "xapp-1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "norbert", cfg.Robot.Name)
	assert.Equal(t, "!", cfg.Robot.Alias)
	assert.Equal(t, "xoxb-from-env", cfg.Slack.Token)
	assert.Equal(t, "xapp-1", cfg.Slack.AppToken)
	assert.Equal(t, 50, cfg.Slack.APIPageSize)
	assert.Equal(t, "sqlite", cfg.Brain.Backend)
}

func TestLegacyPresenceFlags(t *testing.T) {
	t.Setenv("DISABLE_USER_SYNC", "")
	t.Setenv("INSTALLED_TEAM_ONLY", "anything")

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg))
	assert.True(t, cfg.Slack.DisableUserSync)
	assert.True(t, cfg.Slack.InstalledTeamOnly)
}

func TestLegacyNumbersFallBackWhenMalformed(t *testing.T) {
	t.Setenv("API_PAGE_SIZE", "lots")
	t.Setenv("HUBOT_SLACK_CONVERSATION_CACHE_TTL_MS", "nope")

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, DefaultAPIPageSize, cfg.Slack.APIPageSize)
	assert.Equal(t, DefaultConversationCacheTTL, cfg.Slack.ConversationCacheTTL)
}

func TestLegacyNumbersApplied(t *testing.T) {
	t.Setenv("API_PAGE_SIZE", "25")
	t.Setenv("HUBOT_SLACK_CONVERSATION_CACHE_TTL_MS", "1500")

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, 25, cfg.Slack.APIPageSize)
	assert.Equal(t, "1500ms", cfg.Slack.ConversationCacheTTL)
}

func TestLoadRejectsBrokenTOML(t *testing.T) {
	path := writeConfig(t, "[slack\ntoken = ")
	_, err := Load(path)
	require.Error(t, err)
}
