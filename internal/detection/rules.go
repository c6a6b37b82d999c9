package detection

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidCue indicates a cue pattern that is empty or does not compile.
	ErrInvalidCue = errors.New("invalid cue pattern")

	// ErrInvalidThreshold indicates a negative numeric threshold.
	ErrInvalidThreshold = errors.New("invalid threshold")
)

// Default thresholds.
const (
	DefaultNoiseMinHits      = 2
	DefaultNoiseMaxWords     = 80
	DefaultSnippetLength     = 150
	DefaultLookback          = 40
	DefaultWindowBefore      = 40
	DefaultWindowAfter       = 80
	DefaultMinSharedKeywords = 2
)

// CueConfig is the externally supplied detection configuration. A nil cue
// list falls back to the default list; an empty non-nil list disables the
// category. Zero thresholds fall back to their defaults.
type CueConfig struct {
	ActionCues     []string `koanf:"action_cues" json:"action_cues"`
	RiskCues       []string `koanf:"risk_cues" json:"risk_cues"`
	ResolutionCues []string `koanf:"resolution_cues" json:"resolution_cues"`
	CorrectionCues []string `koanf:"correction_cues" json:"correction_cues"`
	NoiseKeywords  []string `koanf:"noise_keywords" json:"noise_keywords"`

	NoiseMinHits      int `koanf:"noise_min_hits" json:"noise_min_hits"`
	NoiseMaxWords     int `koanf:"noise_max_words" json:"noise_max_words"`
	SnippetLength     int `koanf:"snippet_length" json:"snippet_length"`
	Lookback          int `koanf:"lookback" json:"lookback"`
	WindowBefore      int `koanf:"window_before" json:"window_before"`
	WindowAfter       int `koanf:"window_after" json:"window_after"`
	MinSharedKeywords int `koanf:"min_shared_keywords" json:"min_shared_keywords"`
}

// rule is one compiled cue. The id is the declared pattern text so that a
// flag can always be traced back to the configuration line that raised it.
type rule struct {
	id    string
	regex *regexp.Regexp
}

// Rules is the compiled, immutable form of a CueConfig.
type Rules struct {
	action     []rule
	risk       []rule
	resolution []rule
	correction []rule
	noise      []rule

	noiseMinHits      int
	noiseMaxWords     int
	snippetLength     int
	lookback          int
	windowBefore      int
	windowAfter       int
	minSharedKeywords int
}

// conditionalRe detects hypothetical framing ahead of a cue match.
var conditionalRe = regexp.MustCompile(`(?i)\bif there\b`)

// Compile validates cfg and compiles every pattern. It fails on the first
// invalid pattern or negative threshold, naming the offending list.
func Compile(cfg CueConfig) (*Rules, error) {
	defaults := DefaultCueConfig()
	r := &Rules{}

	lists := []struct {
		name     string
		patterns []string
		fallback []string
		dst      *[]rule
	}{
		{"action_cues", cfg.ActionCues, defaults.ActionCues, &r.action},
		{"risk_cues", cfg.RiskCues, defaults.RiskCues, &r.risk},
		{"resolution_cues", cfg.ResolutionCues, defaults.ResolutionCues, &r.resolution},
		{"correction_cues", cfg.CorrectionCues, defaults.CorrectionCues, &r.correction},
		{"noise_keywords", cfg.NoiseKeywords, defaults.NoiseKeywords, &r.noise},
	}
	for _, l := range lists {
		patterns := l.patterns
		if patterns == nil {
			patterns = l.fallback
		}
		compiled, err := compileList(l.name, patterns)
		if err != nil {
			return nil, err
		}
		*l.dst = compiled
	}

	thresholds := []struct {
		name string
		val  int
		def  int
		dst  *int
	}{
		{"noise_min_hits", cfg.NoiseMinHits, DefaultNoiseMinHits, &r.noiseMinHits},
		{"noise_max_words", cfg.NoiseMaxWords, DefaultNoiseMaxWords, &r.noiseMaxWords},
		{"snippet_length", cfg.SnippetLength, DefaultSnippetLength, &r.snippetLength},
		{"lookback", cfg.Lookback, DefaultLookback, &r.lookback},
		{"window_before", cfg.WindowBefore, DefaultWindowBefore, &r.windowBefore},
		{"window_after", cfg.WindowAfter, DefaultWindowAfter, &r.windowAfter},
		{"min_shared_keywords", cfg.MinSharedKeywords, DefaultMinSharedKeywords, &r.minSharedKeywords},
	}
	for _, t := range thresholds {
		if t.val < 0 {
			return nil, fmt.Errorf("%w: %s must be >= 0, got %d", ErrInvalidThreshold, t.name, t.val)
		}
		if t.val == 0 {
			*t.dst = t.def
			continue
		}
		*t.dst = t.val
	}

	return r, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(cfg CueConfig) *Rules {
	r, err := Compile(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

func compileList(name string, patterns []string) ([]rule, error) {
	compiled := make([]rule, 0, len(patterns))
	for i, p := range patterns {
		if p == "" {
			return nil, fmt.Errorf("%w: %s[%d] is empty", ErrInvalidCue, name, i)
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d] %q: %v", ErrInvalidCue, name, i, p, err)
		}
		compiled = append(compiled, rule{id: p, regex: re})
	}
	return compiled, nil
}

// Config returns the effective configuration, with defaults applied.
func (r *Rules) Config() CueConfig {
	ids := func(rules []rule) []string {
		out := make([]string, len(rules))
		for i, ru := range rules {
			out[i] = ru.id
		}
		return out
	}
	return CueConfig{
		ActionCues:        ids(r.action),
		RiskCues:          ids(r.risk),
		ResolutionCues:    ids(r.resolution),
		CorrectionCues:    ids(r.correction),
		NoiseKeywords:     ids(r.noise),
		NoiseMinHits:      r.noiseMinHits,
		NoiseMaxWords:     r.noiseMaxWords,
		SnippetLength:     r.snippetLength,
		Lookback:          r.lookback,
		WindowBefore:      r.windowBefore,
		WindowAfter:       r.windowAfter,
		MinSharedKeywords: r.minSharedKeywords,
	}
}

// firstMatch returns the first rule in declaration order that matches s.
func firstMatch(rules []rule, s string) (rule, []int, bool) {
	for _, ru := range rules {
		if loc := ru.regex.FindStringIndex(s); loc != nil {
			return ru, loc, true
		}
	}
	return rule{}, nil, false
}
