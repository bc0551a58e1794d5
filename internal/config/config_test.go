package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MAIL_FOLDER", "")
	t.Setenv("IMAP_USER", "ops@example.com")
	t.Setenv("IMAP_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.MailFolder)
	assert.Equal(t, "ops@example.com", cfg.SMTPUser)
	assert.Equal(t, "secret", cfg.SMTPPassword)
	assert.Equal(t, "ELO-RE", cfg.GAFamilySearchTerm)
	assert.Equal(t, 60*time.Second, cfg.GATimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GA_SENHA", "legacy")
	t.Setenv("GA_HEADLESS", "off")
	t.Setenv("IMAP_PORT", "not-a-number")
	t.Setenv("LISTENER_INTERVAL_SEC", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "legacy", cfg.GAPassword)
	assert.False(t, cfg.GAHeadless)
	assert.Equal(t, 993, cfg.IMAPPort)
	assert.Equal(t, 30*time.Minute, cfg.ListenerInterval())
}

func TestRequire(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Require("IMAP_HOST", "  "))
	assert.NoError(t, cfg.Require("IMAP_HOST", "imap.example.com"))
}
