package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/threadscan/internal/http"
)

type serveOptions struct {
	host     string
	port     int
	noEnrich bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyze API over HTTP",
		Long: `Start an HTTP server exposing:

  GET  /health           liveness
  POST /api/v1/analyze   {"threads": {"name.txt": "raw thread"}} -> flags, metrics, report
  POST /api/v1/scrub     redact secrets from text
  GET  /metrics          Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (default from config, localhost)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (default from config, 9090)")
	cmd.Flags().BoolVar(&opts.noEnrich, "no-enrich", false, "skip LLM enrichment even when configured")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	cfg := a.cfg.Server
	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Port = opts.port
	}

	p, err := a.newPipeline(pipelineOptions{
		emailDir:   a.cfg.Store.EmailDir,
		noEnrich:   opts.noEnrich,
		registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}

	srv, err := httpserver.NewServer(p, a.guard, a.logger.Underlying().Named("http"), &httpserver.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		BodyLimit: cfg.BodyLimit,
		Meter:     a.tel.Meter("github.com/fyrsmithlabs/threadscan/internal/http"),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Underlying().Warn("http shutdown", zap.Error(err))
		return err
	}
	return nil
}
