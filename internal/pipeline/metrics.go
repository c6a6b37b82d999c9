package pipeline

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
)

// Message stages counted by threadscan_messages_total.
const (
	stageLoaded = "loaded"
	stageNoise  = "noise"
	stageClean  = "clean"
)

type metrics struct {
	messages *prometheus.CounterVec
	flags    *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadscan_messages_total",
			Help: "Messages seen by the pipeline, by stage.",
		}, []string{"stage"}),
		flags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadscan_flags_total",
			Help: "Flags produced by completed runs, by category and final status.",
		}, []string{"category", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadscan_runs_total",
			Help: "Pipeline runs, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "threadscan_run_duration_seconds",
			Help:    "Wall time of a pipeline run.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}

	var err error
	if m.messages, err = register(reg, m.messages); err != nil {
		return nil, err
	}
	if m.flags, err = register(reg, m.flags); err != nil {
		return nil, err
	}
	if m.runs, err = register(reg, m.runs); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing the collector already registered under
// the same name so several pipelines can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *metrics) observeFlags(flags []detection.Flag) {
	for _, f := range flags {
		m.flags.WithLabelValues(string(f.Category()), string(f.Status())).Inc()
	}
}
