package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Jira.ValidateSignature)
	assert.True(t, cfg.Jira.RequireUserAgent)
	assert.Equal(t, "Atlassian", cfg.Jira.UserAgentToken)
	assert.Equal(t, "sha256=", cfg.Jira.SignatureScheme)
	assert.Equal(t, "webhook", cfg.Logs.AuditPrefix)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Storage.O3.Enabled())
	assert.Equal(t, "twin", cfg.Observability.ServiceName)
}

func TestLoadConfig_LegacyNames(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JIRA_WEBHOOK_SECRET", "s3cret")
	t.Setenv("JIRA_VALIDATE_SIGNATURE", "false")
	t.Setenv("JIRA_ALLOWED_IPS", "10.0.0.1, 10.0.0.2 ,")
	t.Setenv("ADMIN_API_KEY", "admin-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Strict())
	assert.False(t, cfg.Jira.ValidateSignature)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Jira.AllowedIPs)
	assert.Equal(t, "admin-key", cfg.Admin.APIKey)

	v := cfg.Validation()
	assert.Equal(t, []byte("s3cret"), v.Secret)
	assert.Contains(t, v.AllowedIPs, "10.0.0.2")
	assert.Len(t, v.AllowedIPs, 2)
}

func TestLoadConfig_PrefixedNames(t *testing.T) {
	t.Setenv("TWIN_LOGS__DIR", "/var/log/twin")
	t.Setenv("TWIN_JIRA__USER_AGENT_TOKEN", "Bitbucket")
	t.Setenv("TWIN_SERVER__PORT", "8088")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/var/log/twin", cfg.Logs.Dir)
	assert.Equal(t, "Bitbucket", cfg.Jira.UserAgentToken)
	assert.Equal(t, "8088", cfg.Server.Port)
	assert.False(t, cfg.Strict())
}

func TestLoadConfig_RejectsBadAllowList(t *testing.T) {
	t.Setenv("JIRA_ALLOWED_IPS", "10.0.0.1,not-an-ip")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidation_NoSecret(t *testing.T) {
	cfg := Default()
	v := cfg.Validation()
	assert.Nil(t, v.Secret)
	assert.Empty(t, v.AllowedIPs)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "jira.allowed_ips", envKey("TWIN_JIRA__ALLOWED_IPS"))
	assert.Equal(t, "server.port", envKey("PORT"))
	assert.Equal(t, "", envKey("HOME"))
}
