package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pharmacies.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.URL)
	assert.Equal(t, 30, cfg.Overpass.TimeoutSecs)
	assert.Equal(t, 25, cfg.Overpass.QueryTimeoutSecs)
	assert.InDelta(t, 1.0, cfg.Overpass.RatePerSec, 0.001)
	assert.Equal(t, 24*time.Hour, cfg.Sync.Interval)
	assert.Equal(t, time.Second, cfg.Sync.Pacing)
	assert.Equal(t, 1, cfg.Sync.FetchAttempts)
	assert.True(t, cfg.Sync.OnStart)
	assert.Empty(t, cfg.Sync.Regions)
	assert.Equal(t, 300, cfg.Query.DefaultLimit)
	assert.Equal(t, 1000, cfg.Query.MaxLimit)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/pharmacies
sync:
  interval: 6h
  pacing: 250ms
  regions:
    - Alger
    - Oran
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/pharmacies", cfg.Store.DatabaseURL)
	assert.Equal(t, 6*time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.Pacing)
	assert.Equal(t, []string{"Alger", "Oran"}, cfg.Sync.Regions)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 300, cfg.Query.DefaultLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PHARMADIR_STORE_DRIVER", "postgres")
	t.Setenv("PHARMADIR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PHARMADIR_SERVER_PORT", "3000")
	t.Setenv("PHARMADIR_SYNC_PACING", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Sync.Pacing)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "pharmacies.db"
	cfg.Overpass.URL = "https://overpass.example/api/interpreter"
	cfg.Overpass.TimeoutSecs = 30
	cfg.Overpass.RatePerSec = 1
	cfg.Sync.Interval = 24 * time.Hour
	cfg.Sync.Pacing = time.Second
	cfg.Sync.FetchAttempts = 1
	cfg.Query.DefaultLimit = 300
	cfg.Query.MaxLimit = 1000
	cfg.Server.Port = 8000
	return cfg
}

func TestValidate_AllModesPass(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"serve", "sync", "query", "migrate"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidateServe_CollectsProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	cfg.Sync.Interval = 0
	cfg.Query.MaxLimit = 10

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be between 1 and 65535")
	assert.Contains(t, err.Error(), "sync.interval must be positive")
	assert.Contains(t, err.Error(), "query.max_limit must be at least query.default_limit")
}

func TestValidateSync_IgnoresServerPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidateSync_FetchAttempts(t *testing.T) {
	cfg := validDefaults()
	cfg.Sync.FetchAttempts = 0

	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.fetch_attempts must be at least 1")
}
