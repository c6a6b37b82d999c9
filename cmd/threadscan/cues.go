package main

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/threadscan/internal/config"
	"github.com/fyrsmithlabs/threadscan/internal/detection"
)

func newCuesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cues",
		Short: "Print the effective cue lists and thresholds",
		Long: `Print the cue configuration after defaults, the config file and
THREADSCAN_ environment overrides are applied. The output is valid YAML for
the cues section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			rules, err := detection.Compile(cfg.Cues)
			if err != nil {
				return fmt.Errorf("compiling cues: %w", err)
			}
			b, err := yaml.Parser().Marshal(map[string]any{"cues": cueMap(rules.Config())})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}

func cueMap(c detection.CueConfig) map[string]any {
	return map[string]any{
		"action_cues":         c.ActionCues,
		"risk_cues":           c.RiskCues,
		"resolution_cues":     c.ResolutionCues,
		"correction_cues":     c.CorrectionCues,
		"noise_keywords":      c.NoiseKeywords,
		"noise_min_hits":      c.NoiseMinHits,
		"noise_max_words":     c.NoiseMaxWords,
		"snippet_length":      c.SnippetLength,
		"lookback":            c.Lookback,
		"window_before":       c.WindowBefore,
		"window_after":        c.WindowAfter,
		"min_shared_keywords": c.MinSharedKeywords,
	}
}
