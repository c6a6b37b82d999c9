package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
	"github.com/fyrsmithlabs/threadscan/internal/mailstore"
	"github.com/fyrsmithlabs/threadscan/internal/sanitize"
	"github.com/fyrsmithlabs/threadscan/internal/secrets"
)

// ErrUnknownProvider is returned by New for an unsupported provider.
var ErrUnknownProvider = errors.New("unknown enrichment provider")

// New returns the enricher cfg asks for. Without an API key, or when
// disabled, it returns a NoOp enricher and no error.
func New(cfg Config, guard *secrets.Guard, logger *zap.Logger) (Enricher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled || cfg.APIKey == "" {
		logger.Info("LLM enrichment disabled", zap.Bool("enabled", cfg.Enabled), zap.Bool("api_key_set", cfg.APIKey != ""))
		return NoOp{}, nil
	}

	switch cfg.Provider {
	case "", "openai":
		completer, err := NewOpenAICompleter(cfg)
		if err != nil {
			return nil, err
		}
		return NewTiered(completer, cfg, guard, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// NoOp leaves every flag untouched.
type NoOp struct{}

// Enrich counts OPEN flags and changes nothing.
func (NoOp) Enrich(_ context.Context, flags []detection.Flag, _ mailstore.Directory) Stats {
	return Stats{Open: detection.Tally(flags).Open}
}

// Available returns false.
func (NoOp) Available() bool { return false }

// Tiered is the two-tier model-backed enricher.
type Tiered struct {
	completer Completer
	cfg       Config
	guard     *secrets.Guard
	limiter   *rate.Limiter
	logger    *zap.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTiered wires a Completer into a Tiered enricher. A nil guard disables
// the sensitive-data check.
func NewTiered(completer Completer, cfg Config, guard *secrets.Guard, logger *zap.Logger) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(cfg.RatePerMinute / 60)
	}
	return &Tiered{
		completer: completer,
		cfg:       cfg,
		guard:     guard,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Available returns true.
func (t *Tiered) Available() bool { return true }

// Enrich runs Tier 1 over every OPEN flag, then Tier 2 over the flags
// Tier 1 rated HIGH and genuine.
func (t *Tiered) Enrich(ctx context.Context, flags []detection.Flag, dir mailstore.Directory) Stats {
	var stats Stats
	var high []int

	for i := range flags {
		if !flags[i].IsOpen() {
			continue
		}
		stats.Open++
		if ctx.Err() != nil {
			break
		}
		stats.Tier1Calls++
		res, ok := t.classify(ctx, t.cfg.Tier1Model, &flags[i], dir, &stats)
		if !ok {
			continue
		}
		t.apply(&flags[i], res, &stats)
		if flags[i].IsOpen() && flags[i].Priority() == LevelHigh {
			high = append(high, i)
		}
	}
	t.logger.Info("enrichment tier 1 complete",
		zap.Int("open", stats.Open),
		zap.Int("high_priority", len(high)),
		zap.Int("declassified", stats.Declassified))

	for _, i := range high {
		if ctx.Err() != nil {
			break
		}
		stats.Tier2Calls++
		if res, ok := t.classify(ctx, t.cfg.Tier2Model, &flags[i], dir, &stats); ok {
			t.apply(&flags[i], res, &stats)
		}
	}
	t.logger.Info("enrichment complete",
		zap.Int("tier1_calls", stats.Tier1Calls),
		zap.Int("tier2_calls", stats.Tier2Calls),
		zap.Int("enriched", stats.Enriched),
		zap.Int("declassified", stats.Declassified),
		zap.Int("blocked", stats.Blocked),
		zap.Int("failed", stats.Failed))
	return stats
}

func (t *Tiered) apply(f *detection.Flag, res Result, stats *Stats) {
	if !res.IsGenuine {
		if f.Declassify() {
			stats.Declassified++
		}
		return
	}
	if f.Enrich(detection.Enrichment{
		Owner:      res.Owner,
		Priority:   res.Priority,
		Summary:    res.Summary,
		Confidence: res.Confidence,
	}) {
		stats.Enriched++
	}
}

// classify sanitises the snippet, refuses sensitive text, and asks the
// model with retries. Any failure returns false.
func (t *Tiered) classify(ctx context.Context, model string, f *detection.Flag, dir mailstore.Directory, stats *Stats) (Result, bool) {
	log := t.logger.With(
		zap.String("model", model),
		zap.String("thread", f.Origin().Thread),
		zap.Int("index", f.Origin().Index))

	snippet := sanitize.Prompt(f.TriggerSnippet())
	if t.guard.Enabled() {
		if check := t.guard.Check(snippet); check.HasFindings() {
			log.Warn("sensitive data in snippet, skipping enrichment", zap.Strings("rules", check.RuleIDs()))
			stats.Blocked++
			return Result{}, false
		}
	}
	user := UserPrompt(*f, snippet, dir)

	raw, err := t.complete(ctx, model, user, log)
	if err != nil {
		log.Warn("LLM call failed, keeping deterministic flag", zap.String("error_type", fmt.Sprintf("%T", errors.Unwrap(err))))
		stats.Failed++
		return Result{}, false
	}

	res, ok := ParseResult(raw)
	if !ok {
		log.Warn("LLM output failed validation, keeping deterministic flag")
		stats.Failed++
		return Result{}, false
	}
	return res, true
}

func (t *Tiered) complete(ctx context.Context, model, user string, log *zap.Logger) (string, error) {
	var lastErr error
	for attempt := 0; attempt < t.cfg.MaxRetries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		out, err := t.completer.Complete(ctx, model, SystemPrompt, user)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == t.cfg.MaxRetries-1 {
			break
		}

		wait := retryAfterFrom(err)
		if wait <= 0 {
			wait = backoff(attempt)
		}
		log.Info("LLM call retryable, waiting",
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", t.cfg.MaxRetries))
		if err := t.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("waiting to retry: %w", err)
		}
	}
	return "", fmt.Errorf("completion failed: %w", lastErr)
}

// backoff is min(5s * 2^attempt, 60s).
func backoff(attempt int) time.Duration {
	if attempt >= 4 {
		return maxBackoff
	}
	return min(baseBackoff*time.Duration(1<<attempt), maxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ Enricher = (*Tiered)(nil)
	_ Enricher = NoOp{}
)
