// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-mailbox/internal/mailbox"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "mailbox.yaml", `
server:
  http_addr: "127.0.0.1:8470"
  socket_path: "/tmp/mailbox.sock"

mailbox:
  capacity: 8
  visibility: "include_read"
  reject_unknown_recipients: true

identity:
  source: "static"
  cache_ttl: "30s"
  cache_size: 16
  users:
    - uid: 1000
      name: "alice"
    - uid: 1001
      name: "bob"

auth:
  jwt_secret: "yaml-secret"
  token_ttl: "1h"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8470", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/mailbox.sock", cfg.Server.SocketPath)
	assert.Equal(t, 8, cfg.Mailbox.Capacity)
	assert.Equal(t, mailbox.IncludeRead, cfg.VisibilityPolicy())
	assert.True(t, cfg.Mailbox.RejectUnknownRecipients)
	assert.Equal(t, IdentityStatic, cfg.Identity.Source)
	assert.Equal(t, 30*time.Second, cfg.Identity.CacheTTL)
	assert.Equal(t, 16, cfg.Identity.CacheSize)
	require.Len(t, cfg.Identity.Users, 2)
	assert.Equal(t, UserEntry{UID: 1001, Name: "bob"}, cfg.Identity.Users[1])
	assert.Equal(t, "yaml-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "mailbox.toml", `
[server]
socket_path = "/tmp/mailbox.sock"

[mailbox]
capacity = 3

[identity]
source = "sqlite"

[database]
path = "/tmp/mailbox.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/mailbox.sock", cfg.Server.SocketPath)
	assert.Empty(t, cfg.Server.HTTPAddr)
	assert.Equal(t, 3, cfg.Mailbox.Capacity)
	assert.Equal(t, mailbox.UnreadOnly, cfg.VisibilityPolicy())
	assert.Equal(t, IdentitySQLite, cfg.Identity.Source)
	assert.Equal(t, "/tmp/mailbox.db", cfg.Database.Path)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "mailbox.yaml", `
server:
  socket_path: "/tmp/mailbox.sock"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultCapacity, cfg.Mailbox.Capacity)
	assert.Equal(t, DefaultVisibility, cfg.Mailbox.Visibility)
	assert.False(t, cfg.Mailbox.RejectUnknownRecipients)
	assert.Equal(t, DefaultIdentity, cfg.Identity.Source)
	assert.Equal(t, DefaultCacheTTL, cfg.Identity.CacheTTL)
	assert.Equal(t, DefaultCacheSize, cfg.Identity.CacheSize)
	assert.Equal(t, DefaultTokenTTL, cfg.Auth.TokenTTL)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_MAILBOX_SECRET", "from-env")
	t.Setenv("TEST_MAILBOX_ADDR", "localhost:9999")

	path := writeConfig(t, "mailbox.yaml", `
server:
  http_addr: "${TEST_MAILBOX_ADDR}"
auth:
  jwt_secret: "${TEST_MAILBOX_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9999", cfg.Server.HTTPAddr)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestExpandEnvVars_Unset(t *testing.T) {
	assert.Equal(t, "a--b", expandEnvVars("a-${COVEN_MAILBOX_SURELY_UNSET_VAR}-b"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "mailbox.yaml", `
server:
  socket_path: "/tmp/mailbox.sock"
identity:
  cache_ttl: "soon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache_ttl")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "mailbox.yaml", "server: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no listener",
			content: "mailbox:\n  capacity: 4\n",
			wantErr: "server.http_addr or server.socket_path is required",
		},
		{
			name:    "tcp without secret",
			content: "server:\n  http_addr: \"localhost:8470\"\n",
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "tailscale without hostname",
			content: "tailscale:\n  enabled: true\nauth:\n  jwt_secret: \"x\"\n",
			wantErr: "tailscale.hostname is required",
		},
		{
			name:    "negative capacity",
			content: "server:\n  socket_path: \"/tmp/s\"\nmailbox:\n  capacity: -1\n",
			wantErr: "mailbox.capacity must be at least 1",
		},
		{
			name:    "bad visibility",
			content: "server:\n  socket_path: \"/tmp/s\"\nmailbox:\n  visibility: \"everything\"\n",
			wantErr: "mailbox.visibility",
		},
		{
			name:    "static without users",
			content: "server:\n  socket_path: \"/tmp/s\"\nidentity:\n  source: \"static\"\n",
			wantErr: "identity.users is required",
		},
		{
			name:    "sqlite without path",
			content: "server:\n  socket_path: \"/tmp/s\"\nidentity:\n  source: \"sqlite\"\n",
			wantErr: "database.path is required",
		},
		{
			name:    "unknown source",
			content: "server:\n  socket_path: \"/tmp/s\"\nidentity:\n  source: \"ldap\"\n",
			wantErr: "identity.source must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), FormatYAML)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %q, want substring %q", err.Error(), tt.wantErr)
		})
	}
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatTOML, formatFor("/etc/coven/mailbox.toml"))
	assert.Equal(t, FormatTOML, formatFor("MAILBOX.TOML"))
	assert.Equal(t, FormatYAML, formatFor("/etc/coven/mailbox.yaml"))
	assert.Equal(t, FormatYAML, formatFor("mailbox"))
}
