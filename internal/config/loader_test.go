package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
)

// setupTestHome points HOME at a temp dir and returns the config dir
// inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "threadscan")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	setupTestHome(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./emails", cfg.Store.EmailDir)
	assert.Equal(t, 5000, cfg.Store.MaxBodyLength)
	assert.Equal(t, "gpt-4o-mini", cfg.Enrichment.Tier1Model)
	assert.Equal(t, "gpt-4o", cfg.Enrichment.Tier2Model)
	assert.Equal(t, 60*time.Second, cfg.Enrichment.Timeout.Duration())
	assert.True(t, cfg.Secrets.Enabled)
	assert.True(t, cfg.Secrets.Gitleaks)
	assert.Equal(t, "report.md", cfg.Report.Output)
	assert.Equal(t, "debug.json", cfg.Report.DebugOutput)
	assert.GreaterOrEqual(t, cfg.Pipeline.Workers, 1)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Nil(t, cfg.Cues.ActionCues)
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `
cues:
  action_cues:
    - '\bplease confirm\b'
  noise_keywords: []
  snippet_length: 200
store:
  max_body_length: 2000
enrichment:
  tier1_model: gpt-4.1-mini
  api_key: sk-from-file
  timeout: 30s
server:
  port: 8181
pipeline:
  workers: 2
logging:
  level: debug
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{`\bplease confirm\b`}, cfg.Cues.ActionCues)
	assert.NotNil(t, cfg.Cues.NoiseKeywords)
	assert.Empty(t, cfg.Cues.NoiseKeywords)
	assert.Nil(t, cfg.Cues.RiskCues)
	assert.Equal(t, 200, cfg.Cues.SnippetLength)
	assert.Equal(t, 2000, cfg.Store.MaxBodyLength)
	assert.Equal(t, "gpt-4.1-mini", cfg.Enrichment.Tier1Model)
	assert.Equal(t, "gpt-4o", cfg.Enrichment.Tier2Model, "unset keys keep defaults")
	assert.Equal(t, "sk-from-file", cfg.Enrichment.APIKey.Value())
	assert.Equal(t, 30*time.Second, cfg.Enrichment.Timeout.Duration())
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Pipeline.Workers)

	var logging struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	}
	logging.Format = "json"
	require.NoError(t, cfg.Section("logging", &logging))
	assert.Equal(t, "debug", logging.Level)
	assert.Equal(t, "json", logging.Format)

	var missing struct {
		Enabled bool `koanf:"enabled"`
	}
	missing.Enabled = true
	require.NoError(t, cfg.Section("telemetry", &missing))
	assert.True(t, missing.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  port: 8181\nenrichment:\n  tier1_model: from-file\n", 0600)

	t.Setenv("THREADSCAN_SERVER__PORT", "9191")
	t.Setenv("THREADSCAN_ENRICHMENT__TIER1_MODEL", "from-env")
	t.Setenv("THREADSCAN_STORE__EMAIL_DIR", "/data/mail")
	t.Setenv("THREADSCAN_SECRETS__GITLEAKS", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Enrichment.Tier1Model)
	assert.Equal(t, "/data/mail", cfg.Store.EmailDir)
	assert.False(t, cfg.Secrets.Gitleaks)
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("insecure permissions", func(t *testing.T) {
		dir := setupTestHome(t)
		path := writeConfig(t, dir, "server:\n  port: 8181\n", 0644)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insecure config file permissions")
	})

	t.Run("read-only is accepted", func(t *testing.T) {
		dir := setupTestHome(t)
		path := writeConfig(t, dir, "server:\n  port: 8181\n", 0400)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8181, cfg.Server.Port)
	})

	t.Run("too large", func(t *testing.T) {
		dir := setupTestHome(t)
		big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
		path := writeConfig(t, dir, big, 0600)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("missing explicit file", func(t *testing.T) {
		dir := setupTestHome(t)

		_, err := Load(filepath.Join(dir, "absent.yaml"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("outside allowed directories", func(t *testing.T) {
		setupTestHome(t)
		other := t.TempDir()
		path := writeConfig(t, other, "server:\n  port: 8181\n", 0600)

		_, err := Load(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigPath)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := setupTestHome(t)
		path := writeConfig(t, dir, "server: [\n", 0600)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load config file")
	})
}

func TestLoad_InvalidCueFailsFast(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "cues:\n  risk_cues:\n    - '(unclosed'\n", 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, detection.ErrInvalidCue)
	assert.Contains(t, err.Error(), "(unclosed")
}

func TestValidateConfigPath(t *testing.T) {
	dir := setupTestHome(t)

	valid := []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "sub", "config.yaml"),
		"/etc/threadscan/config.yaml",
		"threadscan.yaml",
	}
	for _, path := range valid {
		t.Run("allows "+path, func(t *testing.T) {
			assert.NoError(t, validateConfigPath(path))
		})
	}

	invalid := []string{
		"/etc/passwd",
		"/etc/threadscan../passwd",
		filepath.Join(dir, "..", "..", "..", "etc", "passwd"),
		"/var/lib/threadscan/config.yaml",
	}
	for _, path := range invalid {
		t.Run("rejects "+path, func(t *testing.T) {
			assert.ErrorIs(t, validateConfigPath(path), ErrConfigPath)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "enrichment.tier1_model", envKey("THREADSCAN_ENRICHMENT__TIER1_MODEL"))
	assert.Equal(t, "store.max_body_length", envKey("THREADSCAN_STORE__MAX_BODY_LENGTH"))
	assert.Equal(t, "cues.noise_min_hits", envKey("THREADSCAN_CUES__NOISE_MIN_HITS"))
}
