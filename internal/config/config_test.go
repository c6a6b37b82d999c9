package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/threadscan/internal/secrets"
)

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative cue threshold", func(c *Config) { c.Cues.Lookback = -1 }, "cues"},
		{"zero body length", func(c *Config) { c.Store.MaxBodyLength = 0 }, "store.max_body_length"},
		{"zero file bytes", func(c *Config) { c.Store.MaxFileBytes = 0 }, "store.max_file_bytes"},
		{"unknown provider", func(c *Config) { c.Enrichment.Provider = "carrier-pigeon" }, "unsupported provider"},
		{"temperature too high", func(c *Config) { c.Enrichment.Temperature = 3 }, "temperature"},
		{"no retries", func(c *Config) { c.Enrichment.MaxRetries = 0 }, "max_retries"},
		{"negative rate", func(c *Config) { c.Enrichment.RatePerMinute = -1 }, "rate_per_minute"},
		{"zero timeout", func(c *Config) { c.Enrichment.Timeout = 0 }, "timeout"},
		{"bad secret rule", func(c *Config) {
			c.Secrets.Rules = []secrets.Rule{{ID: "broken", Pattern: "("}}
		}, "secrets"},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }, "pipeline.workers"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnrichmentOptions(t *testing.T) {
	t.Run("falls back to OPENAI_API_KEY", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		cfg := Default()

		opts := cfg.EnrichmentOptions()
		assert.Equal(t, "sk-env", opts.APIKey)
		assert.Equal(t, cfg.Enrichment.Tier1Model, opts.Tier1Model)
		assert.Equal(t, 60*time.Second, opts.Timeout)
	})

	t.Run("configured key wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		cfg := Default()
		cfg.Enrichment.APIKey = "sk-config"

		assert.Equal(t, "sk-config", cfg.EnrichmentOptions().APIKey)
	})
}

func TestStoreOptionsAndColleaguesPath(t *testing.T) {
	cfg := Default()
	cfg.Store.MaxBodyLength = 100

	assert.Equal(t, 100, cfg.StoreOptions().MaxBodyLength)
	assert.Equal(t, filepath.Join("mail", "Colleagues.txt"), cfg.ColleaguesPath("mail"))

	cfg.Store.ColleaguesFile = "/srv/team.txt"
	assert.Equal(t, "/srv/team.txt", cfg.ColleaguesPath("mail"))
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-live-123", s.Value())
	assert.True(t, s.IsSet())

	b, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(b))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	b, err := json.Marshal(Duration(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"2m0s"`, string(b))
}
