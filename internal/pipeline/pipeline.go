package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
	"github.com/fyrsmithlabs/threadscan/internal/enrichment"
	"github.com/fyrsmithlabs/threadscan/internal/logging"
	"github.com/fyrsmithlabs/threadscan/internal/mailstore"
	"github.com/fyrsmithlabs/threadscan/internal/report"
)

const instrumentationName = "github.com/fyrsmithlabs/threadscan/internal/pipeline"

// ErrNoRules is returned by New without compiled rules.
var ErrNoRules = errors.New("pipeline: rules are required")

// Options configures a Pipeline.
type Options struct {
	Rules *detection.Rules

	// Store caps body and file sizes while loading.
	Store mailstore.Options

	// Enricher re-classifies open flags. Nil means no enrichment.
	Enricher enrichment.Enricher

	// ColleaguesFile locates the colleague directory. Relative paths
	// resolve against the email directory. Empty means
	// mailstore.ColleaguesFile.
	ColleaguesFile string

	// Workers bounds per-project detection. Zero means runtime.NumCPU().
	Workers int

	Logger *logging.Logger

	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer

	// Registerer receives the pipeline metrics. Nil means a private
	// registry that is never exposed.
	Registerer prometheus.Registerer
}

// Pipeline runs analyses. It is safe for concurrent use; each call is an
// independent run.
type Pipeline struct {
	rules      *detection.Rules
	store      mailstore.Options
	enricher   enrichment.Enricher
	colleagues string
	workers    int
	logger     *logging.Logger
	tracer     trace.Tracer
	metrics    *metrics
	now        func() time.Time
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Flags      []detection.Flag
	Projects   []mailstore.Project
	Load       *mailstore.LoadResult
	Enrichment enrichment.Stats
	Report     report.Input
	Debug      report.Debug
}

// New validates opts and registers the pipeline metrics.
func New(opts Options) (*Pipeline, error) {
	if opts.Rules == nil {
		return nil, ErrNoRules
	}
	if opts.Enricher == nil {
		opts.Enricher = enrichment.NoOp{}
	}
	if opts.ColleaguesFile == "" {
		opts.ColleaguesFile = mailstore.ColleaguesFile
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("registering pipeline metrics: %w", err)
	}

	return &Pipeline{
		rules:      opts.Rules,
		store:      opts.Store,
		enricher:   opts.Enricher,
		colleagues: opts.ColleaguesFile,
		workers:    opts.Workers,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
		metrics:    m,
		now:        time.Now,
	}, nil
}

// Run analyses every thread file in dir. Unreadable files are recorded in
// Result.Load and skipped; a missing directory is an error.
func (p *Pipeline) Run(ctx context.Context, dir string) (*Result, error) {
	ctx, run := p.begin(ctx, "pipeline.Run")
	defer run.span.End()

	loadCtx, span := p.tracer.Start(ctx, "pipeline.load")
	storeLogger := p.logger.Underlying().With(logging.ContextFields(loadCtx)...)
	loaded, err := mailstore.Load(dir, p.store, storeLogger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, run.fail(err)
	}

	colleaguesPath := p.colleagues
	if !filepath.IsAbs(colleaguesPath) {
		colleaguesPath = filepath.Join(loaded.Dir, colleaguesPath)
	}
	colleagues, err := mailstore.LoadColleagues(colleaguesPath)
	if err != nil {
		p.logger.Warn(loadCtx, "colleague directory unavailable", zap.String("path", colleaguesPath), zap.Error(err))
		colleagues = mailstore.Directory{}
	}
	span.SetAttributes(
		attribute.Int("files", loaded.Files),
		attribute.Int("messages", len(loaded.Messages)),
		attribute.Int("file_errors", len(loaded.Errors)),
		attribute.Int("colleagues", len(colleagues)),
	)
	span.End()

	res, err := p.analyze(ctx, run, loaded.Messages, colleagues)
	if err != nil {
		return nil, run.fail(err)
	}
	res.Load = loaded
	res.Debug.FilesLoaded = loaded.Files
	res.Debug.FileErrors = len(loaded.Errors)
	res.Debug.FilesBlocked = len(loaded.Blocked)
	return res, nil
}

// Analyze runs the same pass over in-memory threads keyed by file name. A
// Colleagues.txt entry, if present, is used as the colleague directory.
func (p *Pipeline) Analyze(ctx context.Context, threads map[string]string) (*Result, error) {
	ctx, run := p.begin(ctx, "pipeline.Analyze")
	defer run.span.End()

	colleagues := mailstore.Directory{}
	for name, raw := range threads {
		if !strings.EqualFold(name, filepath.Base(p.colleagues)) {
			continue
		}
		dir, err := mailstore.ParseColleagues(strings.NewReader(raw))
		if err != nil {
			p.logger.Warn(ctx, "colleague directory unreadable", zap.Error(err))
			break
		}
		colleagues = dir
		break
	}

	msgs := mailstore.ParseThreads(threads, p.store)
	res, err := p.analyze(ctx, run, msgs, colleagues)
	if err != nil {
		return nil, run.fail(err)
	}
	for name := range threads {
		if mailstore.IsThreadFile(name) {
			res.Debug.FilesLoaded++
		}
	}
	return res, nil
}

// runState carries per-run bookkeeping between stages.
type runState struct {
	p       *Pipeline
	id      string
	started time.Time
	span    trace.Span
}

func (p *Pipeline) begin(ctx context.Context, name string) (context.Context, *runState) {
	id := uuid.NewString()
	ctx = logging.WithRunID(ctx, id)
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("run.id", id)))
	return ctx, &runState{p: p, id: id, started: p.now(), span: span}
}

func (r *runState) fail(err error) error {
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	r.p.metrics.runs.WithLabelValues("error").Inc()
	return err
}

// projectResult is the detection output for one project.
type projectResult struct {
	clean []detection.Message
	noise int
	flags []detection.Flag
}

func (p *Pipeline) analyze(ctx context.Context, run *runState, msgs []mailstore.Message, colleagues mailstore.Directory) (*Result, error) {
	p.metrics.messages.WithLabelValues(stageLoaded).Add(float64(len(msgs)))
	projects := mailstore.GroupByProject(msgs)
	p.logger.Info(ctx, "grouped messages",
		zap.Int("messages", len(msgs)), zap.Int("projects", len(projects)))

	results, err := p.detect(ctx, projects)
	if err != nil {
		return nil, err
	}

	var (
		flags      []detection.Flag
		noise      int
		candidates int
		counts     = make(map[string]int, len(projects))
	)
	for i, pr := range results {
		noise += pr.noise
		candidates += len(pr.flags)
		counts[projects[i].Name] = len(pr.clean)
		flags = append(flags, pr.flags...)
	}
	p.metrics.messages.WithLabelValues(stageNoise).Add(float64(noise))
	p.metrics.messages.WithLabelValues(stageClean).Add(float64(len(msgs) - noise))

	if err := p.resolve(ctx, results, flags); err != nil {
		return nil, err
	}
	tally := detection.Tally(flags)
	p.logger.Info(ctx, "detection complete",
		zap.Int("noise", noise),
		zap.Int("candidates", candidates),
		zap.Int("open", tally.Open),
		zap.Int("resolved", tally.Resolved))

	stats := p.enrich(ctx, flags, colleagues)
	tally = detection.Tally(flags)

	p.metrics.observeFlags(flags)
	p.metrics.runs.WithLabelValues("ok").Inc()
	elapsed := p.now().Sub(run.started)
	p.metrics.duration.Observe(elapsed.Seconds())

	enrichState := report.EnrichmentDisabled
	if p.enricher.Available() {
		enrichState = report.EnrichmentEnabled
	}

	run.span.SetAttributes(
		attribute.Int("projects", len(projects)),
		attribute.Int("flags.open", tally.Open),
		attribute.Int("flags.resolved", tally.Resolved),
	)
	p.logger.Info(ctx, "analysis complete",
		zap.Int("open", tally.Open),
		zap.Int("resolved", tally.Resolved),
		zap.Int("false_positives", tally.FalsePositive),
		zap.Duration("elapsed", elapsed))

	return &Result{
		RunID:      run.id,
		Flags:      flags,
		Projects:   projects,
		Enrichment: stats,
		Report: report.Input{
			GeneratedAt:   run.started,
			AIEnabled:     p.enricher.Available(),
			Flags:         flags,
			MessageCounts: counts,
		},
		Debug: report.Debug{
			RunID:            run.id,
			EmailsLoaded:     len(msgs),
			ProjectsDetected: len(projects),
			NoiseFiltered:    noise,
			CandidateFlags:   candidates,
			OpenFlags:        tally.Open,
			ResolvedFlags:    tally.Resolved,
			LLMEnrichment:    enrichState,
			LLMCalls:         stats.Tier1Calls + stats.Tier2Calls,
			LLMBlocked:       stats.Blocked,
			FalsePositives:   tally.FalsePositive,
			ColleaguesLoaded: len(colleagues),
			RuntimeSeconds:   elapsed.Seconds(),
		},
	}, nil
}

// detect filters noise and extracts signals per project in parallel.
// Results are indexed like projects.
func (p *Pipeline) detect(ctx context.Context, projects []mailstore.Project) ([]projectResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.detect")
	defer span.End()

	results := make([]projectResult, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range projects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			project := projects[i]
			pctx := logging.WithProject(gctx, project.Name)

			msgs := project.Detection()
			clean, noise := detection.FilterNoise(p.rules, msgs)
			flags := detection.ExtractSignals(p.rules, clean, project.Name)
			results[i] = projectResult{clean: clean, noise: noise, flags: flags}

			p.logger.Debug(pctx, "signals extracted",
				zap.Int("messages", len(msgs)),
				zap.Int("noise", noise),
				zap.Int("flags", len(flags)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("projects", len(projects)))
	return results, nil
}

// resolve runs the resolution detector per project in parallel. flags is
// the concatenation of every result's flags in order, so each project owns
// a disjoint segment of it.
func (p *Pipeline) resolve(ctx context.Context, results []projectResult, flags []detection.Flag) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.resolve")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	offset := 0
	for i := range results {
		seg := flags[offset : offset+len(results[i].flags)]
		offset += len(results[i].flags)
		if len(seg) == 0 {
			continue
		}
		clean := results[i].clean
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			detection.DetectResolutions(p.rules, seg, clean)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (p *Pipeline) enrich(ctx context.Context, flags []detection.Flag, colleagues mailstore.Directory) enrichment.Stats {
	if !p.enricher.Available() {
		return p.enricher.Enrich(ctx, flags, colleagues)
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.enrich")
	defer span.End()

	stats := p.enricher.Enrich(ctx, flags, colleagues)
	span.SetAttributes(
		attribute.Int("tier1_calls", stats.Tier1Calls),
		attribute.Int("tier2_calls", stats.Tier2Calls),
		attribute.Int("declassified", stats.Declassified),
		attribute.Int("blocked", stats.Blocked),
	)
	p.logger.Info(ctx, "enrichment complete",
		zap.Int("enriched", stats.Enriched),
		zap.Int("declassified", stats.Declassified),
		zap.Int("blocked", stats.Blocked),
		zap.Int("failed", stats.Failed))
	return stats
}
