package enrichment

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
	"github.com/fyrsmithlabs/threadscan/internal/mailstore"
)

// Default configuration values.
const (
	DefaultTier1Model    = "gpt-4o-mini"
	DefaultTier2Model    = "gpt-4o"
	DefaultMaxTokens     = 300
	DefaultMaxRetries    = 5
	DefaultRatePerMinute = 20
	DefaultTimeout       = 60 * time.Second

	maxBackoff  = 60 * time.Second
	baseBackoff = 5 * time.Second
)

// Enum values accepted in model output.
const (
	LevelHigh   = "HIGH"
	LevelMedium = "MEDIUM"
	LevelLow    = "LOW"
)

// Config configures the model-backed enricher.
type Config struct {
	Enabled       bool          `koanf:"enabled"`
	Provider      string        `koanf:"provider"` // "openai"
	APIKey        string        `koanf:"-" json:"-"`
	BaseURL       string        `koanf:"base_url"`
	Tier1Model    string        `koanf:"tier1_model"`
	Tier2Model    string        `koanf:"tier2_model"`
	Temperature   float64       `koanf:"temperature"`
	MaxTokens     int           `koanf:"max_tokens"`
	MaxRetries    int           `koanf:"max_retries"`
	RatePerMinute float64       `koanf:"rate_per_minute"`
	Timeout       time.Duration `koanf:"timeout"`
}

// DefaultConfig returns the stock configuration. Enrichment stays off
// until an API key is supplied.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Provider:      "openai",
		Tier1Model:    DefaultTier1Model,
		Tier2Model:    DefaultTier2Model,
		MaxTokens:     DefaultMaxTokens,
		MaxRetries:    DefaultMaxRetries,
		RatePerMinute: DefaultRatePerMinute,
		Timeout:       DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Tier1Model == "" {
		c.Tier1Model = DefaultTier1Model
	}
	if c.Tier2Model == "" {
		c.Tier2Model = DefaultTier2Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Result is a validated model verdict for one flag.
type Result struct {
	IsGenuine  bool   `json:"is_genuine"`
	Owner      string `json:"owner"`
	Priority   string `json:"priority"`
	Summary    string `json:"summary"`
	Confidence string `json:"confidence"`
}

// Stats summarises one Enrich call.
type Stats struct {
	Open         int `json:"open"`
	Tier1Calls   int `json:"tier1_calls"`
	Tier2Calls   int `json:"tier2_calls"`
	Enriched     int `json:"enriched"`
	Declassified int `json:"declassified"`
	Blocked      int `json:"blocked"`
	Failed       int `json:"failed"`
}

// Enricher re-classifies OPEN flags in place.
type Enricher interface {
	// Enrich updates flags in place and reports what happened. It never
	// fails; problems leave flags untouched.
	Enrich(ctx context.Context, flags []detection.Flag, dir mailstore.Directory) Stats

	// Available reports whether a model backs this enricher.
	Available() bool
}

// Completer sends one system+user prompt pair to a model.
type Completer interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}
