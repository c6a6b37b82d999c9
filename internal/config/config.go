// Package config provides configuration loading for threadscan.
//
// Configuration comes from defaults, then an optional YAML file, then
// THREADSCAN_* environment variables. Sections that belong to packages
// which themselves depend on config (logging, telemetry) are decoded on
// demand with Section.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
	"github.com/fyrsmithlabs/threadscan/internal/enrichment"
	"github.com/fyrsmithlabs/threadscan/internal/mailstore"
	"github.com/fyrsmithlabs/threadscan/internal/secrets"
)

// Config holds the complete threadscan configuration.
type Config struct {
	Cues       detection.CueConfig `koanf:"cues"`
	Store      StoreConfig         `koanf:"store"`
	Enrichment EnrichmentConfig    `koanf:"enrichment"`
	Secrets    secrets.Config      `koanf:"secrets"`
	Report     ReportConfig        `koanf:"report"`
	Pipeline   PipelineConfig      `koanf:"pipeline"`
	Server     ServerConfig        `koanf:"server"`

	k *koanf.Koanf
}

// StoreConfig controls how thread files are read.
type StoreConfig struct {
	EmailDir      string `koanf:"email_dir"`
	MaxBodyLength int    `koanf:"max_body_length"`
	MaxFileBytes  int64  `koanf:"max_file_bytes"`

	// ColleaguesFile defaults to Colleagues.txt inside the email directory.
	ColleaguesFile string `koanf:"colleagues_file"`
}

// EnrichmentConfig holds the optional model re-classification settings.
type EnrichmentConfig struct {
	Enabled       bool     `koanf:"enabled"`
	Provider      string   `koanf:"provider"`
	APIKey        Secret   `koanf:"api_key"`
	BaseURL       string   `koanf:"base_url"`
	Tier1Model    string   `koanf:"tier1_model"`
	Tier2Model    string   `koanf:"tier2_model"`
	Temperature   float64  `koanf:"temperature"`
	MaxTokens     int      `koanf:"max_tokens"`
	MaxRetries    int      `koanf:"max_retries"`
	RatePerMinute float64  `koanf:"rate_per_minute"`
	Timeout       Duration `koanf:"timeout"`
}

// ReportConfig names the output files of the analyze command.
type ReportConfig struct {
	Output      string `koanf:"output"`
	DebugOutput string `koanf:"debug_output"`
}

// PipelineConfig bounds per-project parallelism.
type PipelineConfig struct {
	Workers int `koanf:"workers"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	BodyLimit       string   `koanf:"body_limit"`
}

// Default returns the stock configuration. Cue lists are left nil so the
// detection defaults apply.
func Default() *Config {
	enr := enrichment.DefaultConfig()
	sec := secrets.DefaultConfig()
	sec.Rules = nil // nil selects the default rules; a configured list replaces them
	return &Config{
		Store: StoreConfig{
			EmailDir:      "./emails",
			MaxBodyLength: mailstore.DefaultMaxBodyLength,
			MaxFileBytes:  mailstore.DefaultMaxFileBytes,
		},
		Enrichment: EnrichmentConfig{
			Enabled:       enr.Enabled,
			Provider:      enr.Provider,
			Tier1Model:    enr.Tier1Model,
			Tier2Model:    enr.Tier2Model,
			Temperature:   enr.Temperature,
			MaxTokens:     enr.MaxTokens,
			MaxRetries:    enr.MaxRetries,
			RatePerMinute: enr.RatePerMinute,
			Timeout:       Duration(enr.Timeout),
		},
		Secrets: *sec,
		Report: ReportConfig{
			Output:      "report.md",
			DebugOutput: "debug.json",
		},
		Pipeline: PipelineConfig{
			Workers: runtime.NumCPU(),
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
			BodyLimit:       "5M",
		},
	}
}

// Validate checks the configuration. Cue patterns are compiled so that a
// bad pattern fails here, before any message is read.
func (c *Config) Validate() error {
	if _, err := detection.Compile(c.Cues); err != nil {
		return fmt.Errorf("cues: %w", err)
	}

	if c.Store.MaxBodyLength <= 0 {
		return fmt.Errorf("store.max_body_length must be positive, got %d", c.Store.MaxBodyLength)
	}
	if c.Store.MaxFileBytes <= 0 {
		return fmt.Errorf("store.max_file_bytes must be positive, got %d", c.Store.MaxFileBytes)
	}

	if err := c.Enrichment.validate(); err != nil {
		return fmt.Errorf("enrichment: %w", err)
	}

	if err := c.Secrets.Validate(); err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}

	return nil
}

func (e EnrichmentConfig) validate() error {
	if e.Provider != "" && e.Provider != "openai" {
		return fmt.Errorf("unsupported provider %q", e.Provider)
	}
	if e.Temperature < 0 || e.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", e.Temperature)
	}
	if e.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", e.MaxTokens)
	}
	if e.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", e.MaxRetries)
	}
	if e.RatePerMinute < 0 {
		return fmt.Errorf("rate_per_minute cannot be negative, got %g", e.RatePerMinute)
	}
	if e.Timeout.Duration() <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// EnrichmentOptions converts the enrichment section for the enrichment
// package. The API key falls back to OPENAI_API_KEY.
func (c *Config) EnrichmentOptions() enrichment.Config {
	key := c.Enrichment.APIKey.Value()
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	return enrichment.Config{
		Enabled:       c.Enrichment.Enabled,
		Provider:      c.Enrichment.Provider,
		APIKey:        key,
		BaseURL:       c.Enrichment.BaseURL,
		Tier1Model:    c.Enrichment.Tier1Model,
		Tier2Model:    c.Enrichment.Tier2Model,
		Temperature:   c.Enrichment.Temperature,
		MaxTokens:     c.Enrichment.MaxTokens,
		MaxRetries:    c.Enrichment.MaxRetries,
		RatePerMinute: c.Enrichment.RatePerMinute,
		Timeout:       c.Enrichment.Timeout.Duration(),
	}
}

// StoreOptions converts the store section for mailstore.Load.
func (c *Config) StoreOptions() mailstore.Options {
	return mailstore.Options{
		MaxBodyLength: c.Store.MaxBodyLength,
		MaxFileBytes:  c.Store.MaxFileBytes,
	}
}

// ColleaguesPath returns the directory file to use for emailDir.
func (c *Config) ColleaguesPath(emailDir string) string {
	if c.Store.ColleaguesFile != "" {
		return c.Store.ColleaguesFile
	}
	return filepath.Join(emailDir, mailstore.ColleaguesFile)
}

// Section decodes the subtree at path into out, which should already hold
// its defaults. Missing sections leave out untouched.
func (c *Config) Section(path string, out any) error {
	if c.k == nil || !c.k.Exists(path) {
		return nil
	}
	if err := c.k.Unmarshal(path, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", path, err)
	}
	return nil
}
