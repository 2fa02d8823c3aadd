package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorsWildcard(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := corsMiddleware(next, []string{"*"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/boxes", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/boxes", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCorsAllowList(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := corsMiddleware(next, []string{"http://a.lab", " http://b.lab"})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://b.lab")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://b.lab", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateThenSearchAndLabel(t *testing.T) {
	t.Setenv("LEGACY_PATH", "")
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()

	boxes := `[{"id":"3f2c9a1e-aaaa","name":"Cryo-A1","rows":9,"cols":9,
		"cells":{"0-0":{"id":"0-0","name":"GFP-1","content":"","type":"plasmid"}}}]`
	dump, err := json.Marshal(map[string]string{"biolab_boxes": boxes})
	require.NoError(t, err)
	legacyPath := filepath.Join(dir, "localStorage.json")
	require.NoError(t, os.WriteFile(legacyPath, dump, 0o644))

	common := []string{"--store", "json", "--data-dir", dir}

	out, err := run(t, append([]string{"migrate", "--from", legacyPath}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "migrated 1 boxes")
	_, statErr := os.Stat(legacyPath)
	assert.True(t, os.IsNotExist(statErr), "legacy dump is cleared after migration")

	out, err = run(t, append([]string{"search", "gfp"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "A1")
	assert.Contains(t, out, "GFP-1 (plasmid)")

	out, err = run(t, append([]string{"label", "3f2c9a1e-aaaa", "--host", "http://10.0.0.5:8080"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "9x9 Grid")
	assert.Contains(t, out, "http://10.0.0.5:8080/box/3f2c9a1e-aaaa")
	assert.Contains(t, out, "ID: 3f2c9a1e")

	_, err = run(t, append([]string{"label", "missing"}, common...)...)
	assert.Error(t, err)
}

func TestMigrateNeedsSource(t *testing.T) {
	t.Setenv("LEGACY_PATH", "")
	_, err := run(t, "migrate", "--store", "memory")
	assert.ErrorContains(t, err, "no legacy file")
}

func TestUnknownBackend(t *testing.T) {
	_, err := run(t, "search", "x", "--store", "cassandra")
	assert.ErrorContains(t, err, "unknown backend")
}
