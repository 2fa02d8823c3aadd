package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := load("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "json", cfg.Store.Backend)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.LegacyPath)
}

func TestFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
data_dir: /var/lib/boxgrid
allowed_origins: ["http://lab.local"]
legacy_path: /tmp/localStorage.json
store:
  backend: sqlite
label:
  base_host: http://10.0.0.5:9000
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := load(path, envMap(map[string]string{
		"STORE_BACKEND":   "postgres",
		"POSTGRES_DSN":    "postgres://db/boxgrid",
		"ALLOWED_ORIGINS": "http://a, http://b ,",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/var/lib/boxgrid", cfg.DataDir)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://db/boxgrid", cfg.Store.PostgresDSN)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins)
	assert.Equal(t, "/tmp/localStorage.json", cfg.LegacyPath)
	assert.Equal(t, "http://10.0.0.5:9000", cfg.Label.BaseHost)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	_, err := load("", envMap(map[string]string{"STORE_BACKEND": "redis"}))
	require.ErrorContains(t, err, "unknown backend")

	_, err = load("", envMap(map[string]string{"LOG_LEVEL": "loud", "LOG_FORMAT": "xml"}))
	require.ErrorContains(t, err, "log.level")
	require.ErrorContains(t, err, "log.format")
}

func TestMissingOrBadFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.yaml"), envMap(nil))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o644))
	_, err = load(path, envMap(nil))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LogConfig{Level: "debug", Format: "json"}.NewLogger(&buf).Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
