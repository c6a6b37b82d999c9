package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadscan/internal/config"
	"github.com/fyrsmithlabs/threadscan/internal/detection"
	"github.com/fyrsmithlabs/threadscan/internal/enrichment"
	"github.com/fyrsmithlabs/threadscan/internal/logging"
	"github.com/fyrsmithlabs/threadscan/internal/pipeline"
	"github.com/fyrsmithlabs/threadscan/internal/secrets"
	"github.com/fyrsmithlabs/threadscan/internal/telemetry"
)

// app holds the dependencies every command builds from config.
type app struct {
	cfg    *config.Config
	rules  *detection.Rules
	logger *logging.Logger
	tel    *telemetry.Telemetry
	guard  *secrets.Guard
}

// newApp loads config, compiles the cue rules, and starts logging and
// telemetry. Invalid configuration fails here, before any input is read.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	rules, err := detection.Compile(cfg.Cues)
	if err != nil {
		return nil, fmt.Errorf("compiling cues: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	if err := cfg.Section("logging", logCfg); err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		level, err := logging.LevelFromString(opts.logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid --log-level %q: %w", opts.logLevel, err)
		}
		logCfg.Level = level
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	telCfg := telemetry.NewDefaultConfig()
	telCfg.ServiceVersion = version
	if err := cfg.Section("telemetry", telCfg); err != nil {
		return nil, err
	}
	tel, err := telemetry.New(ctx, telCfg, logger.Underlying().Named("telemetry"))
	if err != nil {
		return nil, err
	}

	guard, err := secrets.New(&cfg.Secrets, logger.Underlying().Named("secrets"))
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("initializing secret guard: %w", err)
	}

	logger.Debug(ctx, "configuration loaded",
		zap.String("config", opts.configPath),
		zap.Bool("enrichment.enabled", cfg.Enrichment.Enabled),
		logging.Secret("enrichment.api_key", cfg.Enrichment.APIKey),
		zap.Int("pipeline.workers", cfg.Pipeline.Workers),
	)
	return &app{cfg: cfg, rules: rules, logger: logger, tel: tel, guard: guard}, nil
}

// pipelineOptions tweak how newPipeline wires enrichment and metrics.
type pipelineOptions struct {
	emailDir   string
	noEnrich   bool
	registerer prometheus.Registerer
}

func (a *app) newPipeline(opts pipelineOptions) (*pipeline.Pipeline, error) {
	enrichCfg := a.cfg.EnrichmentOptions()
	if opts.noEnrich {
		enrichCfg.Enabled = false
	}
	enricher, err := enrichment.New(enrichCfg, a.guard, a.logger.Underlying().Named("enrichment"))
	if err != nil {
		return nil, fmt.Errorf("initializing enrichment: %w", err)
	}

	colleagues := a.cfg.ColleaguesPath(opts.emailDir)
	if abs, err := filepath.Abs(colleagues); err == nil {
		colleagues = abs
	}

	return pipeline.New(pipeline.Options{
		Rules:          a.rules,
		Store:          a.cfg.StoreOptions(),
		Enricher:       enricher,
		ColleaguesFile: colleagues,
		Workers:        a.cfg.Pipeline.Workers,
		Logger:         a.logger.Named("pipeline"),
		Tracer:         a.tel.Tracer("github.com/fyrsmithlabs/threadscan/internal/pipeline"),
		Registerer:     opts.registerer,
	})
}

// close flushes telemetry and logs. Errors are joined, not fatal.
func (a *app) close() error {
	var errs []error
	if err := a.tel.Shutdown(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if err := a.logger.Sync(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		a.logger.Underlying().Debug("shutdown errors", zap.Error(errors.Join(errs...)))
	}
	return errors.Join(errs...)
}
