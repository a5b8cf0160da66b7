package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "irc.local", cfg.Server.Name)
	assert.Equal(t, "0.0.0.0:6667", cfg.GetListenAddress())
	assert.Equal(t, "0.0.0.0:6697", cfg.GetTLSListenAddress())
	assert.Equal(t, "127.0.0.1:8080", cfg.GetAdminListenAddress())
	assert.Equal(t, []string{"Message of the day."}, cfg.Server.MOTD)
	assert.Equal(t, 30, cfg.NameLimits().NickLength)
	assert.False(t, cfg.TLS.Enabled)
	assert.False(t, cfg.EventLog.Enabled)
	assert.Equal(t, 5, cfg.EventLog.Retries)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  name: com.example
  host: 127.0.0.1
  port: 7000
  banner: oxicoco 1.0.0
  motd:
    - first line
    - second line
limits:
  nick_length: 9
  channel_length: 50
  topic_length: 80
  user_length: 12
session:
  write_timeout: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "com.example", cfg.Server.Name)
	assert.Equal(t, "127.0.0.1:7000", cfg.GetListenAddress())
	assert.Equal(t, "oxicoco 1.0.0", cfg.Server.Banner)
	assert.Equal(t, []string{"first line", "second line"}, cfg.Server.MOTD)
	assert.Equal(t, 9, cfg.NameLimits().NickLength)
	assert.Equal(t, 80, cfg.NameLimits().TopicLength)
	assert.Equal(t, 5*time.Second, cfg.Session.WriteTimeout)
	assert.Equal(t, path, cfg.Source)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
name = "toml.example"
port = 6668

[eventlog]
enabled = true
driver = "sqlite"
dsn = "events.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "toml.example", cfg.Server.Name)
	assert.Equal(t, 6668, cfg.Server.Port)
	assert.True(t, cfg.EventLog.Enabled)
	assert.Equal(t, "events.db", cfg.EventLog.DSN)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"server": {"name": "json.example", "port": 6669}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json.example", cfg.Server.Name)
	assert.Equal(t, 6669, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IRCD_SERVER_NAME", "env.example")
	t.Setenv("IRCD_PORT", "7001")
	t.Setenv("IRCD_MOTD", "one|two")
	t.Setenv("IRCD_DEBUG", "true")
	t.Setenv("IRCD_NICK_LENGTH", "16")

	cfg, err := Load(writeConfig(t, "config.yaml", "server:\n  name: file.example\n"))
	require.NoError(t, err)

	assert.Equal(t, "env.example", cfg.Server.Name)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, []string{"one", "two"}, cfg.Server.MOTD)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, 16, cfg.Limits.NickLength)
}

func TestValidation(t *testing.T) {
	tests := map[string]string{
		"bad server name": "server:\n  name: \"not a host!\"\n",
		"bad port":        "server:\n  port: 70000\n",
		"bad driver":      "eventlog:\n  driver: oracle\n",
		"zero nick limit": "limits:\n  nick_length: 0\n",
		"missing dsn":     "eventlog:\n  enabled: true\n  dsn: \"\"\n",
		"negative retry":  "eventlog:\n  retries: -1\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestReload(t *testing.T) {
	path := writeConfig(t, "config.yaml", "server:\n  name: first.example\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "first.example", cfg.Server.Name)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  name: second.example\n"), 0644))
	require.NoError(t, cfg.Reload(""))
	assert.Equal(t, "second.example", cfg.Server.Name)
}
