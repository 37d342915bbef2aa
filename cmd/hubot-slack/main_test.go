package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "hubot-slack ")
}

func TestMigrateRequiresCommand(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate"})
	assert.Error(t, cmd.Execute())
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("HUBOT_HTTP_JWT_SECRET", "")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--config", t.TempDir() + "/missing.toml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestTokenPrintsBearer(t *testing.T) {
	t.Setenv("HUBOT_HTTP_JWT_SECRET", "s3cret")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--subject", "ops", "--ttl", "1h", "--config", t.TempDir() + "/missing.toml"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte(".")))
}
