package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Recorder.IdleTimeout)
	assert.Equal(t, "@every 1m", cfg.Recorder.SweepSchedule)
	assert.Equal(t, 10.0, cfg.Chrome.HoverRate)
	assert.Equal(t, "chrome", cfg.Script.Browser)
	assert.Equal(t, 100, cfg.Script.MaxPages)
	assert.Equal(t, "looprec", cfg.Logger.ServiceName)
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CHROME_HEADLESS", "true")
	t.Setenv("LOOPREC_SCRIPT_MAX_PAGES", "7")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.True(t, cfg.Chrome.HeadlessMode)
	assert.Equal(t, 7, cfg.Script.MaxPages)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "looprec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  enabled: true
  name: recordings
recorder:
  idle_timeout: 90s
script:
  browser: firefox
`), 0o600))

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "recordings", cfg.Database.Database)
	assert.Equal(t, 90*time.Second, cfg.Recorder.IdleTimeout)
	assert.Equal(t, "firefox", cfg.Script.Browser)
	assert.Contains(t, cfg.GetDSN(), "@tcp(127.0.0.1:3306)/recordings?charset=utf8mb4")
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
