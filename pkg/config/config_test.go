package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := Default()
	cfg.Database.DataDir = ""
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsShortInitialPassword(t *testing.T) {
	cfg := Default()
	cfg.Auth.Enabled = true
	cfg.Auth.MinPasswordLength = 12
	cfg.Auth.InitialPassword = "short"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "VERBOSE"
	require.Error(t, cfg.Validate())
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphlite.yaml")
	contents := "database:\n  data_dir: /var/lib/graphlite\n  default_graph: prod\nlogging:\n  level: DEBUG\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/graphlite", cfg.Database.DataDir)
	require.Equal(t, "prod", cfg.Database.DefaultGraph)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	// Fields the file didn't mention keep Default()'s values.
	require.Equal(t, "main", cfg.Database.DefaultSchema)
	require.False(t, cfg.Auth.Enabled)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphlite.yaml")

	cfg := Default()
	cfg.Database.DataDir = dir
	cfg.Auth.TokenExpiry = 2 * time.Hour
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Database.DataDir, loaded.Database.DataDir)
	require.Equal(t, cfg.Auth.TokenExpiry, loaded.Auth.TokenExpiry)
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("GRAPHLITE_DATA_DIR", "/tmp/graphlite-env")
	t.Setenv("GRAPHLITE_AUTH_ENABLED", "true")
	t.Setenv("GRAPHLITE_AUTH_TOKEN_EXPIRY", "30m")
	t.Setenv("GRAPHLITE_LOG_LEVEL", "WARN")

	cfg := LoadFromEnv()
	require.Equal(t, "/tmp/graphlite-env", cfg.Database.DataDir)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, 30*time.Minute, cfg.Auth.TokenExpiry)
	require.Equal(t, "WARN", cfg.Logging.Level)
}

func TestGetEnvDurationFallsBackToSeconds(t *testing.T) {
	t.Setenv("GRAPHLITE_AUTH_TOKEN_EXPIRY", "45")
	cfg := LoadFromEnv()
	require.Equal(t, 45*time.Second, cfg.Auth.TokenExpiry)
}
