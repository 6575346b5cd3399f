package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := write(t, `
coach:
  id: "coach-1"
auth:
  jwt_secret: "s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost:8080", cfg.Address)
	assert.Equal(t, 56, cfg.Regeneration.HorizonDays)
	assert.Equal(t, "all", cfg.Regeneration.DeleteScope)
	assert.Equal(t, 15*time.Minute, cfg.Reminder.Lead)
	assert.False(t, cfg.WeChat.Enabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COACH_OPENID", "from-env")
	t.Setenv("WECHAT_APP_ID", "wx1")
	t.Setenv("WECHAT_APP_SECRET", "secret")

	path := write(t, `
coach:
  id: "coach-1"
auth:
  jwt_secret: "s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Coach.ID)
	assert.True(t, cfg.WeChat.Enabled())
}

func TestLoad_Rejects(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(write(t, `
coach:
  id: "coach-1"
  timezone: "Mars/Olympus"
auth:
  jwt_secret: "s"
`))
	require.Error(t, err)

	_, err = Load(write(t, `
coach:
  id: "coach-1"
auth:
  jwt_secret: "s"
regeneration:
  delete_scope: "some"
`))
	require.Error(t, err)
}
