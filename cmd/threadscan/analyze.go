package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadscan/internal/logging"
	"github.com/fyrsmithlabs/threadscan/internal/pipeline"
	"github.com/fyrsmithlabs/threadscan/internal/report"
	"github.com/fyrsmithlabs/threadscan/internal/watch"
)

type analyzeOptions struct {
	emailDir string
	output   string
	debug    string
	watch    bool
	noEnrich bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an email directory and write the report",
		Long: `Analyze every *.txt thread in the email directory, write the Markdown
report and the debug metrics JSON, and print a summary table.

Examples:
  # Analyze ./emails with the defaults
  threadscan analyze

  # Write the report to stdout without calling a model
  threadscan analyze --email-dir ./inbox --output - --no-enrich

  # Re-run whenever a thread file changes
  threadscan analyze --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.emailDir, "email-dir", "", "directory of *.txt threads (default from config, ./emails)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `report path, "-" for stdout (default from config, report.md)`)
	cmd.Flags().StringVar(&opts.debug, "debug", "", `debug metrics path, "" to skip (default from config, debug.json)`)
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-run when thread files change")
	cmd.Flags().BoolVar(&opts.noEnrich, "no-enrich", false, "skip LLM enrichment even when configured")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	flags := cmd.Flags()
	if !flags.Changed("email-dir") {
		opts.emailDir = a.cfg.Store.EmailDir
	}
	if !flags.Changed("output") {
		opts.output = a.cfg.Report.Output
	}
	// An explicit empty --debug skips the debug file.
	if !flags.Changed("debug") {
		opts.debug = a.cfg.Report.DebugOutput
	}

	p, err := a.newPipeline(pipelineOptions{
		emailDir:   opts.emailDir,
		noEnrich:   opts.noEnrich,
		registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}

	if err := analyzeOnce(ctx, p, opts, cmd.OutOrStdout()); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	return watchLoop(ctx, a.logger, p, opts, cmd.OutOrStdout())
}

func analyzeOnce(ctx context.Context, p *pipeline.Pipeline, opts *analyzeOptions, out io.Writer) error {
	res, err := p.Run(ctx, opts.emailDir)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", opts.emailDir, err)
	}

	md, err := report.Markdown(res.Report)
	if err != nil {
		return err
	}
	if opts.debug != "" {
		if err := report.WriteDebug(opts.debug, res.Debug); err != nil {
			return fmt.Errorf("writing debug metrics: %w", err)
		}
	}
	if opts.output == "-" {
		_, err := io.WriteString(out, md)
		return err
	}
	if err := report.WriteMarkdown(opts.output, md); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Fprint(out, report.Summary(res.Report, res.Debug))
	fmt.Fprintf(out, "\nReport: %s\n", opts.output)
	if opts.debug != "" {
		fmt.Fprintf(out, "Debug:  %s\n", opts.debug)
	}
	return nil
}

func watchLoop(ctx context.Context, logger *logging.Logger, p *pipeline.Pipeline, opts *analyzeOptions, out io.Writer) error {
	w, err := watch.New(opts.emailDir, watch.DefaultDebounce, logger.Underlying().Named("watch"))
	if err != nil {
		return err
	}
	w.Start(ctx)
	defer w.Stop()

	logger.Info(ctx, "watching for changes", zap.String("dir", opts.emailDir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			logger.Info(ctx, "thread files changed, re-running", zap.Strings("files", ev.Files))
			if err := analyzeOnce(ctx, p, opts, out); err != nil {
				logger.Error(ctx, "analysis failed", zap.Error(err))
			}
		}
	}
}
